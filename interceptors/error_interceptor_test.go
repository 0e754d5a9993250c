package interceptors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gramhook/errhook/rpcerr"
	"github.com/gramhook/errhook/sink"
)

type testClient struct {
	id string
}

func (c *testClient) ID() string {
	return c.id
}

type callbackCall struct {
	client ClientInfo
	err    error
}

// recorder collects callback invocations
type recorder struct {
	calls  []callbackCall
	result error
	panic  any
}

func (r *recorder) callback(client ClientInfo, err error) error {
	r.calls = append(r.calls, callbackCall{client: client, err: err})
	if r.panic != nil {
		panic(r.panic)
	}
	return r.result
}

// sinkRecorder collects failures handed to the fallback
type sinkRecorder struct {
	got []sink.Uncaught
}

func (s *sinkRecorder) HandleUncaught(u sink.Uncaught) {
	s.got = append(s.got, u)
}

type mockObserver struct {
	mock.Mock
}

func (m *mockObserver) ErrorIntercepted(kind string) {
	m.Called(kind)
}

func (m *mockObserver) FloodWaitPassed() {
	m.Called()
}

func (m *mockObserver) FallbackInvoked(reason string) {
	m.Called(reason)
}

func newTestInterceptor(t *testing.T, catchAll bool, rec *recorder, fallback sink.Sink, options ...ErrorInterceptorOption) (*ErrorInterceptor, *testClient) {
	t.Helper()

	client := &testClient{id: "client-1"}
	options = append([]ErrorInterceptorOption{
		WithCatchAll(catchAll),
		WithOriginalDispatcher(direct),
		WithFallback(fallback),
	}, options...)

	ei, err := NewErrorInterceptor(client, rec.callback, options...)
	require.NoError(t, err)
	return ei, client
}

func TestNewErrorInterceptor(t *testing.T) {
	t.Run("requires client", func(t *testing.T) {
		ei, err := NewErrorInterceptor(nil, func(ClientInfo, error) error { return nil })
		assert.Nil(t, ei)
		assert.ErrorIs(t, err, ErrNilClient)
	})

	t.Run("requires callback", func(t *testing.T) {
		ei, err := NewErrorInterceptor(&testClient{}, nil)
		assert.Nil(t, ei)
		assert.ErrorIs(t, err, ErrNilCallback)
	})

	t.Run("protocol errors only by default", func(t *testing.T) {
		ei, err := NewErrorInterceptor(&testClient{}, func(ClientInfo, error) error { return nil })
		require.NoError(t, err)

		assert.False(t, ei.CatchAll())
		matchers := ei.Matchers()
		require.Len(t, matchers, 1)
		assert.True(t, matchers[0].Match(rpcerr.New(400, "X", "")))
		assert.False(t, matchers[0].Match(errors.New("local")))
		assert.NotNil(t, ei.Original())
		assert.Equal(t, "ErrorInterceptor", ei.Name())
	})

	t.Run("catch all appends universal matcher", func(t *testing.T) {
		ei, err := NewErrorInterceptor(&testClient{}, func(ClientInfo, error) error { return nil }, WithCatchAll(true))
		require.NoError(t, err)

		matchers := ei.Matchers()
		require.Len(t, matchers, 2)
		assert.True(t, matchers[1].Match(errors.New("anything")))
	})

	t.Run("extra matchers follow built-in ones", func(t *testing.T) {
		extra := MatcherFunc(func(err error) bool { return false })
		ei, err := NewErrorInterceptor(&testClient{}, func(ClientInfo, error) error { return nil },
			WithMatchers(extra), WithCatchAll(true))
		require.NoError(t, err)

		assert.Len(t, ei.Matchers(), 3)
	})

	t.Run("matcher snapshot cannot change interceptor", func(t *testing.T) {
		ei, err := NewErrorInterceptor(&testClient{}, func(ClientInfo, error) error { return nil })
		require.NoError(t, err)

		snapshot := ei.Matchers()
		snapshot[0] = AllErrors()

		assert.False(t, ei.Matchers()[0].Match(errors.New("local")))
	})
}

func TestErrorInterceptorDispatch(t *testing.T) {
	t.Run("success returns result without callback", func(t *testing.T) {
		rec := &recorder{}
		ei, _ := newTestInterceptor(t, false, rec, &sinkRecorder{})

		result, err := ei.Dispatch(context.Background(), returning("value", nil))

		assert.NoError(t, err)
		assert.Equal(t, "value", result)
		assert.Empty(t, rec.calls)
	})

	t.Run("flood wait is re-raised unchanged", func(t *testing.T) {
		for _, catchAll := range []bool{false, true} {
			rec := &recorder{}
			ei, _ := newTestInterceptor(t, catchAll, rec, &sinkRecorder{})
			fw := rpcerr.New(420, "FLOOD_WAIT_15", "messages.sendMessage")

			result, err := ei.Dispatch(context.Background(), returning(nil, fw))

			assert.Nil(t, result)
			assert.Same(t, fw, err, "catchAll=%v", catchAll)
			assert.Empty(t, rec.calls, "catchAll=%v", catchAll)
		}
	})

	t.Run("wrapped flood wait is re-raised unchanged", func(t *testing.T) {
		rec := &recorder{}
		ei, _ := newTestInterceptor(t, true, rec, &sinkRecorder{})
		wrapped := fmt.Errorf("send: %w", rpcerr.NewFloodWait(time.Second, ""))

		_, err := ei.Dispatch(context.Background(), returning(nil, wrapped))

		assert.Same(t, wrapped, err)
		assert.Empty(t, rec.calls)
	})

	t.Run("protocol error goes to callback and is swallowed", func(t *testing.T) {
		rec := &recorder{}
		ei, client := newTestInterceptor(t, false, rec, &sinkRecorder{})
		badRequest := rpcerr.New(400, "PEER_ID_INVALID", "messages.sendMessage")

		result, err := ei.Dispatch(context.Background(), returning("ignored", badRequest))

		assert.NoError(t, err)
		assert.Nil(t, result)
		require.Len(t, rec.calls, 1)
		assert.Same(t, client, rec.calls[0].client)
		assert.Same(t, badRequest, rec.calls[0].err)
	})

	t.Run("slow mode and premium waits go to callback", func(t *testing.T) {
		for _, message := range []string{"SLOWMODE_WAIT_10", "FLOOD_PREMIUM_WAIT_5", "FLOOD_TEST_PHONE_WAIT_3"} {
			rec := &recorder{}
			fallback := &sinkRecorder{}
			ei, client := newTestInterceptor(t, false, rec, fallback)
			wait := rpcerr.New(420, message, "messages.sendMessage")

			result, err := ei.Dispatch(context.Background(), returning(nil, wait))

			assert.NoError(t, err, message)
			assert.Nil(t, result, message)
			require.Len(t, rec.calls, 1, message)
			assert.Same(t, client, rec.calls[0].client)
			assert.Same(t, wait, rec.calls[0].err, message)
			assert.Empty(t, fallback.got, message)
		}
	})

	t.Run("local error propagates without catch all", func(t *testing.T) {
		rec := &recorder{}
		ei, _ := newTestInterceptor(t, false, rec, &sinkRecorder{})
		local := errors.New("disk full")

		_, err := ei.Dispatch(context.Background(), returning(nil, local))

		assert.Same(t, local, err)
		assert.Empty(t, rec.calls)
	})

	t.Run("local error goes to callback with catch all", func(t *testing.T) {
		rec := &recorder{}
		ei, _ := newTestInterceptor(t, true, rec, &sinkRecorder{})
		local := errors.New("runtime failure")

		result, err := ei.Dispatch(context.Background(), returning(nil, local))

		assert.NoError(t, err)
		assert.Nil(t, result)
		require.Len(t, rec.calls, 1)
		assert.Same(t, local, rec.calls[0].err)
	})

	t.Run("failing callback forwards original error to fallback", func(t *testing.T) {
		rec := &recorder{result: errors.New("callback broke")}
		fallback := &sinkRecorder{}
		ei, _ := newTestInterceptor(t, false, rec, fallback)
		badRequest := rpcerr.New(400, "MESSAGE_EMPTY", "")

		_, err := ei.Dispatch(context.Background(), returning(nil, badRequest))

		assert.NoError(t, err)
		require.Len(t, rec.calls, 1)
		require.Len(t, fallback.got, 1)
		assert.Same(t, badRequest, fallback.got[0].Err)
		assert.Equal(t, "client-1", fallback.got[0].ClientID)
	})

	t.Run("panicking callback is contained", func(t *testing.T) {
		rec := &recorder{panic: "callback exploded"}
		fallback := &sinkRecorder{}
		ei, _ := newTestInterceptor(t, true, rec, fallback)
		local := errors.New("original")

		assert.NotPanics(t, func() {
			_, err := ei.Dispatch(context.Background(), returning(nil, local))
			assert.NoError(t, err)
		})
		require.Len(t, fallback.got, 1)
		assert.Same(t, local, fallback.got[0].Err)
	})

	t.Run("Intercept wraps the given next dispatcher", func(t *testing.T) {
		rec := &recorder{}
		ei, _ := newTestInterceptor(t, false, rec, &sinkRecorder{})
		next := &mockDispatcher{}
		next.On("Dispatch", mock.Anything, mock.Anything).Return(nil, rpcerr.New(403, "CHAT_WRITE_FORBIDDEN", "")).Once()

		_, err := ei.Intercept(context.Background(), returning(nil, nil), next)

		assert.NoError(t, err)
		assert.Len(t, rec.calls, 1)
		next.AssertExpectations(t)
	})

	t.Run("panicking work is intercepted with catch all", func(t *testing.T) {
		rec := &recorder{}
		client := &testClient{id: "c"}
		ei, err := NewErrorInterceptor(client, rec.callback,
			WithCatchAll(true),
			WithOriginalDispatcher(NewExecutorDispatcher()),
			WithFallback(&sinkRecorder{}),
		)
		require.NoError(t, err)

		_, err = ei.Dispatch(context.Background(), func(context.Context) (any, error) {
			panic("work exploded")
		})

		assert.NoError(t, err)
		require.Len(t, rec.calls, 1)
		var panicErr *PanicError
		assert.ErrorAs(t, rec.calls[0].err, &panicErr)
	})
}

func TestErrorInterceptorHandleUncaught(t *testing.T) {
	t.Run("protocol error goes to callback without catch all", func(t *testing.T) {
		rec := &recorder{}
		fallback := &sinkRecorder{}
		ei, client := newTestInterceptor(t, false, rec, fallback)
		u := sink.NewUncaught("client-1", rpcerr.New(401, "AUTH_KEY_UNREGISTERED", ""))

		ei.HandleUncaught(u)

		require.Len(t, rec.calls, 1)
		assert.Same(t, client, rec.calls[0].client)
		assert.Equal(t, u.Err, rec.calls[0].err)
		assert.Empty(t, fallback.got)
	})

	t.Run("other errors reach fallback unchanged without catch all", func(t *testing.T) {
		rec := &recorder{}
		fallback := &sinkRecorder{}
		ei, _ := newTestInterceptor(t, false, rec, fallback)

		var u sink.Uncaught
		func() {
			defer func() { u = sink.FromRecovered("client-1", recover()) }()
			panic("nil pointer")
		}()

		ei.HandleUncaught(u)

		assert.Empty(t, rec.calls)
		require.Len(t, fallback.got, 1)
		assert.Equal(t, u, fallback.got[0])
	})

	t.Run("every error goes to callback with catch all", func(t *testing.T) {
		rec := &recorder{}
		fallback := &sinkRecorder{}
		ei, _ := newTestInterceptor(t, true, rec, fallback)

		ei.HandleUncaught(sink.NewUncaught("client-1", errors.New("a")))
		ei.HandleUncaught(sink.NewUncaught("client-1", rpcerr.New(500, "RPC_CALL_FAIL", "")))
		ei.HandleUncaught(sink.NewUncaught("client-1", rpcerr.NewFloodWait(time.Second, "")))

		assert.Len(t, rec.calls, 3)
		assert.Empty(t, fallback.got)
	})

	t.Run("failing callback hands original failure to fallback", func(t *testing.T) {
		for _, catchAll := range []bool{false, true} {
			rec := &recorder{result: errors.New("callback broke")}
			fallback := &sinkRecorder{}
			ei, _ := newTestInterceptor(t, catchAll, rec, fallback)
			u := sink.NewUncaught("client-1", rpcerr.New(400, "MESSAGE_EMPTY", ""))

			ei.HandleUncaught(u)

			require.Len(t, fallback.got, 1, "catchAll=%v", catchAll)
			assert.Equal(t, u, fallback.got[0])
		}
	})

	t.Run("panicking callback hands original failure to fallback", func(t *testing.T) {
		rec := &recorder{panic: errors.New("callback panic")}
		fallback := &sinkRecorder{}
		ei, _ := newTestInterceptor(t, true, rec, fallback)
		u := sink.NewUncaught("client-1", errors.New("original"))

		assert.NotPanics(t, func() { ei.HandleUncaught(u) })

		require.Len(t, fallback.got, 1)
		assert.Equal(t, u, fallback.got[0])
		assert.EqualError(t, fallback.got[0].Err, "original")
	})
}

func TestErrorInterceptorObserver(t *testing.T) {
	t.Run("reports interception outcomes", func(t *testing.T) {
		observer := &mockObserver{}
		rec := &recorder{}
		ei, _ := newTestInterceptor(t, false, rec, &sinkRecorder{}, WithObserver(observer))

		observer.On("ErrorIntercepted", "BadRequest").Return().Once()
		observer.On("FloodWaitPassed").Return().Once()
		observer.On("FallbackInvoked", FallbackUnmatched).Return().Once()

		_, _ = ei.Dispatch(context.Background(), returning(nil, rpcerr.New(400, "X", "")))
		_, _ = ei.Dispatch(context.Background(), returning(nil, rpcerr.NewFloodWait(time.Second, "")))
		ei.HandleUncaught(sink.NewUncaught("", errors.New("local")))

		observer.AssertExpectations(t)
	})

	t.Run("reports callback failures", func(t *testing.T) {
		observer := &mockObserver{}
		rec := &recorder{result: errors.New("broken")}
		ei, _ := newTestInterceptor(t, true, rec, &sinkRecorder{}, WithObserver(observer))

		observer.On("FallbackInvoked", FallbackCallbackFailed).Return().Twice()

		_, _ = ei.Dispatch(context.Background(), returning(nil, errors.New("a")))
		ei.HandleUncaught(sink.NewUncaught("", errors.New("b")))

		observer.AssertExpectations(t)
		observer.AssertNotCalled(t, "ErrorIntercepted", mock.Anything)
	})
}

func TestCallbackError(t *testing.T) {
	inner := errors.New("inner")

	assert.EqualError(t, &CallbackError{Err: inner}, "error callback failed: inner")
	assert.EqualError(t, &CallbackError{Err: inner, Panicked: true}, "error callback panicked: inner")
	assert.ErrorIs(t, &CallbackError{Err: inner}, inner)
}
