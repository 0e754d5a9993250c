// Package interceptors provides interception of blocking work dispatch.
//
// Blocking work (a Work function) runs through a Dispatcher. Interceptors wrap
// a dispatcher to add cross-cutting concerns without touching the code that
// issues the work. This package provides:
//   - Dispatcher interface and the default ExecutorDispatcher
//   - DispatchInterceptor interface and chain management
//   - ErrorInterceptor, which redirects errors to a user callback
//   - ErrorMatcher implementations for choosing which errors are redirected
//
// Built-in interceptors:
//   - LoggingInterceptor: Logs dispatch outcomes with timing information
//   - MetricsInterceptor: Collects metrics about dispatched work
//   - ErrorInterceptor: Sends matching errors to a callback and swallows them
//
// Example usage:
//
//	handler, err := interceptors.NewErrorInterceptor(client,
//		func(c interceptors.ClientInfo, err error) error {
//			log.Printf("client %s: %v", c.ID(), err)
//			return nil
//		},
//		interceptors.WithCatchAll(true),
//	)
//
//	chain := interceptors.NewDefaultInterceptorChainBuilder(logger).
//		WithLogging().
//		WithMetrics(collector).
//		Build()
//
//	result, err := chain.Execute(ctx, work, handler)
//
// Flood waits (rpcerr.FloodWait) are never intercepted by ErrorInterceptor:
// they tell the caller to pause and retry, so they always reach it unchanged.
//
// Interceptors are executed in the order they are added to the chain, with the
// final dispatcher being called last.
package interceptors
