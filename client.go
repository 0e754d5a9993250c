// Copyright 2024 Errhook Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errhook

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/gramhook/errhook/interceptors"
	"github.com/gramhook/errhook/sink"
)

var (
	// ErrNilCallback is returned by OnError when no callback is given
	ErrNilCallback = errors.New("errhook: callback is required")
)

// ErrorCallback receives intercepted errors. Returning an error, or
// panicking, hands the original failure to the scheduler's original fallback.
type ErrorCallback func(client *Client, err error) error

// Client runs blocking work for one Telegram session and routes its failures
type Client struct {
	id        string
	logger    *slog.Logger
	scheduler *Scheduler
	chain     *interceptors.InterceptorChain
	observer  interceptors.InterceptionObserver

	mu         sync.RWMutex
	dispatcher interceptors.Dispatcher
	handler    *interceptors.ErrorInterceptor
}

// NewClient creates a new client
func NewClient(options ...ClientOption) *Client {
	cfg := &clientConfig{
		logger: slog.Default(),
	}

	for _, opt := range options {
		opt(cfg)
	}

	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.id == "" {
		cfg.id = uuid.New().String()
	}
	if cfg.scheduler == nil {
		cfg.scheduler = NewScheduler(WithSchedulerLogger(cfg.logger))
	}

	chain := interceptors.NewInterceptorChain(cfg.logger)
	for _, i := range cfg.interceptors {
		chain.Add(i)
	}

	return &Client{
		id:        cfg.id,
		logger:    cfg.logger.With("clientId", cfg.id),
		scheduler: cfg.scheduler,
		chain:     chain,
		observer:  cfg.observer,
	}
}

// ID returns the client id
func (c *Client) ID() string {
	return c.id
}

// Scheduler returns the scheduler the client dispatches through
func (c *Client) Scheduler() *Scheduler {
	return c.scheduler
}

// Dispatcher returns the dispatcher in effect for this client: its own
// override if one is installed, otherwise the scheduler's.
func (c *Client) Dispatcher() interceptors.Dispatcher {
	c.mu.RLock()
	d := c.dispatcher
	c.mu.RUnlock()

	if d != nil {
		return d
	}
	return c.scheduler.Dispatcher()
}

// ErrorHandler returns the error interceptor registered on this client, if any
func (c *Client) ErrorHandler() *interceptors.ErrorInterceptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handler
}

// OnError registers callback to receive errors raised by this client's work.
//
// Protocol errors are always delivered. With catchAll every error is, and the
// interceptor is installed on the scheduler so it covers every client sharing
// it; without catchAll only this client's dispatch is wrapped. In both cases
// the interceptor becomes the scheduler's fallback sink, replacing whatever
// was registered before. Flood waits are never delivered.
func (c *Client) OnError(callback ErrorCallback, catchAll bool) (*interceptors.ErrorInterceptor, error) {
	if callback == nil {
		return nil, ErrNilCallback
	}

	options := []interceptors.ErrorInterceptorOption{
		interceptors.WithCatchAll(catchAll),
		interceptors.WithOriginalDispatcher(c.scheduler.OriginalDispatcher()),
		interceptors.WithFallback(c.scheduler.OriginalFallback()),
		interceptors.WithInterceptorLogger(c.logger),
	}
	if c.observer != nil {
		options = append(options, interceptors.WithObserver(c.observer))
	}

	handler, err := interceptors.NewErrorInterceptor(c, func(_ interceptors.ClientInfo, err error) error {
		return callback(c, err)
	}, options...)
	if err != nil {
		return nil, err
	}

	if catchAll {
		c.scheduler.SetDispatcher(handler)
	} else {
		c.mu.Lock()
		c.dispatcher = handler
		c.mu.Unlock()
	}
	c.scheduler.SetFallback(handler)

	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()

	c.logger.Info("error handler registered", "catchAll", catchAll)

	return handler, nil
}

// Run dispatches work through the client's interceptor chain and dispatcher
func (c *Client) Run(ctx context.Context, work interceptors.Work) (any, error) {
	if work == nil {
		return nil, interceptors.ErrNilWork
	}
	return c.chain.Execute(ctx, work, c.Dispatcher())
}

// Go runs fn on a new goroutine. A panic or a returned error is reported to
// the scheduler's fallback sink.
func (c *Client) Go(ctx context.Context, fn func(ctx context.Context) error) {
	go func() {
		defer c.Recover()

		if err := fn(ctx); err != nil {
			c.Report(err)
		}
	}()
}

// Recover reports a panic to the scheduler's fallback sink.
// It must be called directly with defer.
func (c *Client) Recover() {
	if r := recover(); r != nil {
		c.scheduler.Report(sink.FromRecovered(c.id, r))
	}
}

// Report hands an error that escaped all handling to the scheduler's fallback sink
func (c *Client) Report(err error) {
	if err == nil {
		return
	}
	c.scheduler.Report(sink.NewUncaught(c.id, err))
}

// clientConfig holds client configuration
type clientConfig struct {
	id           string
	logger       *slog.Logger
	scheduler    *Scheduler
	interceptors []interceptors.DispatchInterceptor
	observer     interceptors.InterceptionObserver
}

// ClientOption configures the client
type ClientOption func(*clientConfig)

// WithClientID sets the client id. A random id is used by default.
func WithClientID(id string) ClientOption {
	return func(cfg *clientConfig) {
		cfg.id = id
	}
}

// WithLogger sets the logger for all components
func WithLogger(logger *slog.Logger) ClientOption {
	return func(cfg *clientConfig) {
		cfg.logger = logger
	}
}

// WithScheduler shares a scheduler between clients
func WithScheduler(s *Scheduler) ClientOption {
	return func(cfg *clientConfig) {
		cfg.scheduler = s
	}
}

// WithInterceptors adds dispatch interceptors, outermost first
func WithInterceptors(i ...interceptors.DispatchInterceptor) ClientOption {
	return func(cfg *clientConfig) {
		cfg.interceptors = append(cfg.interceptors, i...)
	}
}

// WithObserver sets the observer passed to error interceptors registered by OnError
func WithObserver(o interceptors.InterceptionObserver) ClientOption {
	return func(cfg *clientConfig) {
		cfg.observer = o
	}
}
