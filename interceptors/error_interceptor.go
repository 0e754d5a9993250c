package interceptors

import (
	"context"
	"log/slog"

	"github.com/gramhook/errhook/rpcerr"
	"github.com/gramhook/errhook/sink"
)

// ClientInfo identifies the client an interceptor belongs to
type ClientInfo interface {
	ID() string
}

// Callback receives intercepted errors together with the owning client.
// A returned error or a panic marks the callback as failed.
type Callback func(client ClientInfo, err error) error

// InterceptionObserver is notified about interception outcomes
type InterceptionObserver interface {
	ErrorIntercepted(kind string)
	FloodWaitPassed()
	FallbackInvoked(reason string)
}

// Fallback reasons reported to InterceptionObserver
const (
	FallbackUnmatched      = "unmatched"
	FallbackCallbackFailed = "callback_failed"
)

type noopObserver struct{}

func (noopObserver) ErrorIntercepted(string) {}
func (noopObserver) FloodWaitPassed()        {}
func (noopObserver) FallbackInvoked(string)  {}

// ErrorInterceptor redirects errors to a user callback.
//
// It serves two extension points. As a Dispatcher it wraps the original
// dispatch primitive: flood waits pass through untouched, errors accepted by
// a matcher go to the callback and are swallowed, everything else is returned
// as is. As a sink.Sink it is the fallback hook for failures that escaped all
// handling: eligible failures go to the callback, the rest (and any failure
// whose callback itself fails) go to the original fallback sink.
type ErrorInterceptor struct {
	client   ClientInfo
	callback Callback
	catchAll bool
	matchers []ErrorMatcher
	original Dispatcher
	fallback sink.Sink
	observer InterceptionObserver
	logger   *slog.Logger
}

// ErrorInterceptorOption configures the error interceptor
type ErrorInterceptorOption func(*ErrorInterceptor)

// WithCatchAll makes every error eligible for interception, not only protocol errors
func WithCatchAll(catchAll bool) ErrorInterceptorOption {
	return func(i *ErrorInterceptor) {
		i.catchAll = catchAll
	}
}

// WithOriginalDispatcher sets the primitive the interceptor dispatches through
func WithOriginalDispatcher(d Dispatcher) ErrorInterceptorOption {
	return func(i *ErrorInterceptor) {
		i.original = d
	}
}

// WithFallback sets the sink that receives failures the callback does not handle
func WithFallback(s sink.Sink) ErrorInterceptorOption {
	return func(i *ErrorInterceptor) {
		i.fallback = s
	}
}

// WithMatchers appends matchers after the built-in ones
func WithMatchers(matchers ...ErrorMatcher) ErrorInterceptorOption {
	return func(i *ErrorInterceptor) {
		i.matchers = append(i.matchers, matchers...)
	}
}

// WithObserver sets the observer notified about outcomes
func WithObserver(observer InterceptionObserver) ErrorInterceptorOption {
	return func(i *ErrorInterceptor) {
		i.observer = observer
	}
}

// WithInterceptorLogger sets the logger
func WithInterceptorLogger(logger *slog.Logger) ErrorInterceptorOption {
	return func(i *ErrorInterceptor) {
		i.logger = logger
	}
}

// NewErrorInterceptor creates a new error interceptor for client.
// Without WithOriginalDispatcher it dispatches through a fresh
// ExecutorDispatcher; without WithFallback it falls back to a LogSink.
func NewErrorInterceptor(client ClientInfo, callback Callback, options ...ErrorInterceptorOption) (*ErrorInterceptor, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if callback == nil {
		return nil, ErrNilCallback
	}

	i := &ErrorInterceptor{
		client:   client,
		callback: callback,
		logger:   slog.Default(),
	}

	for _, opt := range options {
		opt(i)
	}
	extra := i.matchers

	if i.logger == nil {
		i.logger = slog.Default()
	}
	if i.original == nil {
		i.original = NewExecutorDispatcher()
	}
	if i.fallback == nil {
		i.fallback = sink.NewLogSink(i.logger)
	}
	if i.observer == nil {
		i.observer = noopObserver{}
	}

	matchers := []ErrorMatcher{ProtocolErrors()}
	if i.catchAll {
		matchers = append(matchers, AllErrors())
	}
	matchers = append(matchers, extra...)

	// Frozen: nothing appends to this slice after construction
	i.matchers = matchers[:len(matchers):len(matchers)]

	return i, nil
}

// CatchAll reports whether every error is eligible for interception
func (i *ErrorInterceptor) CatchAll() bool {
	return i.catchAll
}

// Matchers returns a copy of the configured matchers in match order
func (i *ErrorInterceptor) Matchers() []ErrorMatcher {
	out := make([]ErrorMatcher, len(i.matchers))
	copy(out, i.matchers)
	return out
}

// Original returns the dispatcher the interceptor wraps
func (i *ErrorInterceptor) Original() Dispatcher {
	return i.original
}

// Dispatch implements Dispatcher by wrapping the original primitive
func (i *ErrorInterceptor) Dispatch(ctx context.Context, work Work) (any, error) {
	return i.Intercept(ctx, work, i.original)
}

// Intercept implements DispatchInterceptor
func (i *ErrorInterceptor) Intercept(ctx context.Context, work Work, next Dispatcher) (any, error) {
	result, err := next.Dispatch(ctx, work)
	if err == nil {
		return result, nil
	}

	if rpcerr.IsFloodWait(err) {
		i.observer.FloodWaitPassed()
		return nil, err
	}

	if !i.matches(err) {
		return nil, err
	}

	if cbErr := i.invokeCallback(err); cbErr != nil {
		i.logger.Debug("error callback failed, using fallback",
			"clientId", i.client.ID(),
			"callbackError", cbErr,
		)
		i.observer.FallbackInvoked(FallbackCallbackFailed)
		i.fallback.HandleUncaught(sink.NewUncaught(i.client.ID(), err))
		return nil, nil
	}

	i.observer.ErrorIntercepted(kindLabel(err))
	return nil, nil
}

// Name implements DispatchInterceptor
func (i *ErrorInterceptor) Name() string {
	return "ErrorInterceptor"
}

// HandleUncaught implements sink.Sink.
// It runs synchronously on the reporting goroutine.
func (i *ErrorInterceptor) HandleUncaught(u sink.Uncaught) {
	if !i.catchAll && !rpcerr.IsRPCError(u.Err) {
		i.observer.FallbackInvoked(FallbackUnmatched)
		i.fallback.HandleUncaught(u)
		return
	}

	if cbErr := i.invokeCallback(u.Err); cbErr != nil {
		i.logger.Debug("error callback failed, using fallback",
			"clientId", i.client.ID(),
			"reportId", u.ID,
			"callbackError", cbErr,
		)
		i.observer.FallbackInvoked(FallbackCallbackFailed)
		i.fallback.HandleUncaught(u)
		return
	}

	i.observer.ErrorIntercepted(kindLabel(u.Err))
}

func (i *ErrorInterceptor) matches(err error) bool {
	for _, m := range i.matchers {
		if m.Match(err) {
			return true
		}
	}
	return false
}

// invokeCallback runs the callback, converting a panic into a CallbackError
func (i *ErrorInterceptor) invokeCallback(err error) (cbErr error) {
	defer func() {
		if r := recover(); r != nil {
			cbErr = &CallbackError{Err: sink.FromPanicValue(r), Panicked: true}
		}
	}()

	if err := i.callback(i.client, err); err != nil {
		return &CallbackError{Err: err}
	}
	return nil
}
