package interceptors

import (
	"context"
	"runtime"
	"runtime/debug"
)

// ExecutorDispatcher runs work on a bounded set of goroutines.
// Dispatch returns when the work completes or ctx is done, whichever is first;
// work abandoned by a done context keeps its slot until it returns.
type ExecutorDispatcher struct {
	slots chan struct{}
}

// ExecutorOption configures the executor dispatcher
type ExecutorOption func(*ExecutorDispatcher)

// WithMaxWorkers sets the maximum number of concurrently running work units
func WithMaxWorkers(n int) ExecutorOption {
	return func(e *ExecutorDispatcher) {
		if n > 0 {
			e.slots = make(chan struct{}, n)
		}
	}
}

// NewExecutorDispatcher creates a new executor dispatcher
func NewExecutorDispatcher(options ...ExecutorOption) *ExecutorDispatcher {
	e := &ExecutorDispatcher{
		slots: make(chan struct{}, runtime.NumCPU()),
	}

	for _, opt := range options {
		opt(e)
	}

	return e
}

type outcome struct {
	result any
	err    error
}

// Dispatch implements Dispatcher
func (e *ExecutorDispatcher) Dispatch(ctx context.Context, work Work) (any, error) {
	if work == nil {
		return nil, ErrNilWork
	}

	select {
	case e.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() { <-e.slots }()
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: &PanicError{Value: r, Stack: debug.Stack()}}
			}
		}()

		result, err := work(ctx)
		done <- outcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
