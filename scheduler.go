package errhook

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gramhook/errhook/interceptors"
	"github.com/gramhook/errhook/sink"
)

// Scheduler owns the dispatch primitive and the fallback sink shared by every
// client created with it.
//
// Both are saved at construction as the originals. Installing a replacement
// never loses them, so an error interceptor always wraps the original
// primitive and always falls back to the original sink.
type Scheduler struct {
	mu               sync.RWMutex
	dispatcher       interceptors.Dispatcher
	fallback         sink.Sink
	originalDispatch interceptors.Dispatcher
	originalFallback sink.Sink
	hooked           bool
	logger           *slog.Logger
}

// schedulerConfig holds scheduler configuration
type schedulerConfig struct {
	dispatcher interceptors.Dispatcher
	fallback   sink.Sink
	logger     *slog.Logger
}

// SchedulerOption configures the scheduler
type SchedulerOption func(*schedulerConfig)

// WithDispatcher sets the original dispatch primitive
func WithDispatcher(d interceptors.Dispatcher) SchedulerOption {
	return func(cfg *schedulerConfig) {
		cfg.dispatcher = d
	}
}

// WithFallback sets the original fallback sink
func WithFallback(s sink.Sink) SchedulerOption {
	return func(cfg *schedulerConfig) {
		cfg.fallback = s
	}
}

// WithSchedulerLogger sets the scheduler logger
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(cfg *schedulerConfig) {
		cfg.logger = logger
	}
}

// NewScheduler creates a new scheduler. By default work runs on an
// ExecutorDispatcher and uncaught failures are logged.
func NewScheduler(options ...SchedulerOption) *Scheduler {
	cfg := &schedulerConfig{
		logger: slog.Default(),
	}

	for _, opt := range options {
		opt(cfg)
	}

	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.dispatcher == nil {
		cfg.dispatcher = interceptors.NewExecutorDispatcher()
	}
	if cfg.fallback == nil {
		cfg.fallback = sink.NewLogSink(cfg.logger)
	}

	return &Scheduler{
		dispatcher:       cfg.dispatcher,
		fallback:         cfg.fallback,
		originalDispatch: cfg.dispatcher,
		originalFallback: cfg.fallback,
		logger:           cfg.logger,
	}
}

// Dispatcher returns the dispatcher currently in effect
func (s *Scheduler) Dispatcher() interceptors.Dispatcher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dispatcher
}

// OriginalDispatcher returns the dispatcher the scheduler was built with
func (s *Scheduler) OriginalDispatcher() interceptors.Dispatcher {
	return s.originalDispatch
}

// SetDispatcher replaces the dispatcher for every client without its own override
func (s *Scheduler) SetDispatcher(d interceptors.Dispatcher) {
	if d == nil {
		d = s.originalDispatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatcher = d
}

// Fallback returns the fallback sink currently in effect
func (s *Scheduler) Fallback() sink.Sink {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fallback
}

// OriginalFallback returns the fallback sink the scheduler was built with
func (s *Scheduler) OriginalFallback() sink.Sink {
	return s.originalFallback
}

// SetFallback replaces the fallback sink. The previous one is dropped.
func (s *Scheduler) SetFallback(f sink.Sink) {
	if f == nil {
		f = s.originalFallback
	}

	s.mu.Lock()
	replaced := s.hooked
	s.fallback = f
	s.hooked = true
	s.mu.Unlock()

	if replaced {
		s.logger.Debug("replacing installed fallback sink")
	}
}

// Dispatch runs work through the dispatcher currently in effect
func (s *Scheduler) Dispatch(ctx context.Context, work interceptors.Work) (any, error) {
	return s.Dispatcher().Dispatch(ctx, work)
}

// Report hands an uncaught failure to the fallback sink
func (s *Scheduler) Report(u sink.Uncaught) {
	s.Fallback().HandleUncaught(u)
}
