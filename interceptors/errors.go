package interceptors

import (
	"errors"
	"fmt"

	"github.com/gramhook/errhook/rpcerr"
)

var (
	ErrNilCallback   = errors.New("interceptors: callback is required")
	ErrNilClient     = errors.New("interceptors: client is required")
	ErrNilDispatcher = errors.New("interceptors: dispatcher is required")
	ErrNilWork       = errors.New("interceptors: work is required")
)

// PanicError is returned by a dispatcher when work panics
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("work panicked: %v", e.Value)
}

// Unwrap returns the panic value when it was an error
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// CallbackError wraps a failure raised by a user error callback
type CallbackError struct {
	Err      error
	Panicked bool
}

func (e *CallbackError) Error() string {
	if e.Panicked {
		return fmt.Sprintf("error callback panicked: %v", e.Err)
	}
	return fmt.Sprintf("error callback failed: %v", e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

// kindLabel names the class of err for logs and metrics
func kindLabel(err error) string {
	if rpcErr, ok := rpcerr.AsRPCError(err); ok {
		return rpcErr.Kind().String()
	}

	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return "panic"
	}

	return "error"
}
