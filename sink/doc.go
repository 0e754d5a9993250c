// Package sink defines where failures go when nothing else handles them.
//
// A Sink is the last-resort handler for failures that escape all handling:
// panics recovered on client goroutines and errors a component explicitly
// gives up on. Sinks are plain values injected into the scheduler, so the
// fallback chain is explicit and replaceable per scheduler rather than being a
// process-wide hook.
//
// Built-in sinks:
//   - LogSink: reports through a *slog.Logger (the default fallback)
//   - Func: adapts a function
//   - Multi: fans a failure out to several sinks
//   - Discard: drops everything
//
// The amqpsink subpackage publishes failure reports to RabbitMQ.
package sink
