package interceptors

import (
	"context"
	"log/slog"
	"time"

	"github.com/gramhook/errhook/rpcerr"
)

// Work is a unit of blocking work run through a Dispatcher
type Work func(ctx context.Context) (any, error)

// Dispatcher runs blocking work off the caller and awaits its result
type Dispatcher interface {
	Dispatch(ctx context.Context, work Work) (any, error)
}

// DispatcherFunc is a function adapter for Dispatcher
type DispatcherFunc func(ctx context.Context, work Work) (any, error)

// Dispatch implements Dispatcher
func (f DispatcherFunc) Dispatch(ctx context.Context, work Work) (any, error) {
	return f(ctx, work)
}

// DispatchInterceptor wraps work dispatch with a cross-cutting concern
type DispatchInterceptor interface {
	// Intercept dispatches work through next, adding behavior around it
	Intercept(ctx context.Context, work Work, next Dispatcher) (any, error)

	// Name returns the interceptor name for logging and debugging
	Name() string
}

// InterceptorFunc is a function adapter for DispatchInterceptor
type InterceptorFunc struct {
	name string
	fn   func(ctx context.Context, work Work, next Dispatcher) (any, error)
}

// NewInterceptorFunc creates a new function-based interceptor
func NewInterceptorFunc(name string, fn func(ctx context.Context, work Work, next Dispatcher) (any, error)) *InterceptorFunc {
	return &InterceptorFunc{name: name, fn: fn}
}

// Intercept implements DispatchInterceptor
func (i *InterceptorFunc) Intercept(ctx context.Context, work Work, next Dispatcher) (any, error) {
	return i.fn(ctx, work, next)
}

// Name implements DispatchInterceptor
func (i *InterceptorFunc) Name() string {
	return i.name
}

// InterceptorChain manages a chain of interceptors
type InterceptorChain struct {
	interceptors []DispatchInterceptor
	logger       *slog.Logger
}

// NewInterceptorChain creates a new interceptor chain
func NewInterceptorChain(logger *slog.Logger) *InterceptorChain {
	if logger == nil {
		logger = slog.Default()
	}

	return &InterceptorChain{
		interceptors: make([]DispatchInterceptor, 0),
		logger:       logger,
	}
}

// Add adds an interceptor to the chain
func (c *InterceptorChain) Add(interceptor DispatchInterceptor) *InterceptorChain {
	c.interceptors = append(c.interceptors, interceptor)
	return c
}

// Len returns the number of interceptors in the chain
func (c *InterceptorChain) Len() int {
	return len(c.interceptors)
}

// Wrap returns a dispatcher that runs the chain around final.
// The first interceptor added is the outermost one.
func (c *InterceptorChain) Wrap(final Dispatcher) Dispatcher {
	dispatcher := final
	for i := len(c.interceptors) - 1; i >= 0; i-- {
		interceptor := c.interceptors[i]
		next := dispatcher
		dispatcher = DispatcherFunc(func(ctx context.Context, work Work) (any, error) {
			return interceptor.Intercept(ctx, work, next)
		})
	}
	return dispatcher
}

// Execute dispatches work through the chain and then final
func (c *InterceptorChain) Execute(ctx context.Context, work Work, final Dispatcher) (any, error) {
	if len(c.interceptors) == 0 {
		return final.Dispatch(ctx, work)
	}

	return c.Wrap(final).Dispatch(ctx, work)
}

// Built-in interceptors

// LoggingInterceptor logs dispatched work
type LoggingInterceptor struct {
	logger *slog.Logger
}

// NewLoggingInterceptor creates a new logging interceptor
func NewLoggingInterceptor(logger *slog.Logger) *LoggingInterceptor {
	if logger == nil {
		logger = slog.Default()
	}

	return &LoggingInterceptor{logger: logger}
}

// Intercept implements DispatchInterceptor
func (i *LoggingInterceptor) Intercept(ctx context.Context, work Work, next Dispatcher) (any, error) {
	start := time.Now()

	result, err := next.Dispatch(ctx, work)
	duration := time.Since(start)

	switch {
	case err == nil:
		i.logger.Debug("work dispatched", "duration", duration)
	case rpcerr.IsFloodWait(err):
		fw, _ := rpcerr.AsFloodWait(err)
		i.logger.Warn("work rate limited",
			"wait", fw.Wait,
			"rpc", fw.RPC,
			"duration", duration,
		)
	default:
		i.logger.Error("work failed",
			"kind", kindLabel(err),
			"duration", duration,
			"error", err,
		)
	}

	return result, err
}

// Name implements DispatchInterceptor
func (i *LoggingInterceptor) Name() string {
	return "LoggingInterceptor"
}

// MetricsInterceptor collects metrics about dispatched work
type MetricsInterceptor struct {
	collector MetricsCollector
}

// MetricsCollector defines the interface for collecting dispatch metrics
type MetricsCollector interface {
	IncrementDispatchCount()
	RecordDispatchTime(duration time.Duration)
	IncrementErrorCount(kind string)
}

// NewMetricsInterceptor creates a new metrics interceptor
func NewMetricsInterceptor(collector MetricsCollector) *MetricsInterceptor {
	return &MetricsInterceptor{collector: collector}
}

// Intercept implements DispatchInterceptor
func (i *MetricsInterceptor) Intercept(ctx context.Context, work Work, next Dispatcher) (any, error) {
	start := time.Now()

	i.collector.IncrementDispatchCount()

	result, err := next.Dispatch(ctx, work)

	i.collector.RecordDispatchTime(time.Since(start))

	if err != nil {
		i.collector.IncrementErrorCount(kindLabel(err))
	}

	return result, err
}

// Name implements DispatchInterceptor
func (i *MetricsInterceptor) Name() string {
	return "MetricsInterceptor"
}

// Default interceptor chain builder

// DefaultInterceptorChainBuilder builds a common interceptor chain
type DefaultInterceptorChainBuilder struct {
	chain  *InterceptorChain
	logger *slog.Logger
}

// NewDefaultInterceptorChainBuilder creates a new builder
func NewDefaultInterceptorChainBuilder(logger *slog.Logger) *DefaultInterceptorChainBuilder {
	if logger == nil {
		logger = slog.Default()
	}

	return &DefaultInterceptorChainBuilder{
		chain:  NewInterceptorChain(logger),
		logger: logger,
	}
}

// WithLogging adds logging interceptor
func (b *DefaultInterceptorChainBuilder) WithLogging() *DefaultInterceptorChainBuilder {
	b.chain.Add(NewLoggingInterceptor(b.logger))
	return b
}

// WithMetrics adds metrics interceptor
func (b *DefaultInterceptorChainBuilder) WithMetrics(collector MetricsCollector) *DefaultInterceptorChainBuilder {
	b.chain.Add(NewMetricsInterceptor(collector))
	return b
}

// WithCustom adds a custom interceptor
func (b *DefaultInterceptorChainBuilder) WithCustom(interceptor DispatchInterceptor) *DefaultInterceptorChainBuilder {
	b.chain.Add(interceptor)
	return b
}

// Build returns the built interceptor chain
func (b *DefaultInterceptorChainBuilder) Build() *InterceptorChain {
	return b.chain
}
