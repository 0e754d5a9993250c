// Package amqpsink publishes uncaught failure reports to RabbitMQ.
//
// Each failure handed to the sink is encoded as a JSON Report and published
// to the configured exchange. Publishing never blocks the failing goroutine
// for longer than the publish timeout, and a failed publish is logged and
// then handed to an optional next sink so the failure is never lost.
package amqpsink

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/gramhook/errhook/rpcerr"
	"github.com/gramhook/errhook/sink"
)

var (
	// ErrNilPublisher is returned when no channel is supplied
	ErrNilPublisher = errors.New("amqpsink: publisher is required")
)

// Publisher is the subset of *amqp.Channel used by the sink
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Report is the wire form of an uncaught failure
type Report struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"clientId,omitempty"`
	Error     string    `json:"error"`
	Kind      string    `json:"kind,omitempty"`
	Code      int       `json:"code,omitempty"`
	RPCID     string    `json:"rpcId,omitempty"`
	Panic     bool      `json:"panic"`
	Stack     string    `json:"stack,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewReport converts an uncaught failure to its wire form
func NewReport(u sink.Uncaught) Report {
	r := Report{
		ID:        u.ID,
		ClientID:  u.ClientID,
		Panic:     u.IsPanic(),
		Stack:     string(u.Stack),
		Timestamp: u.Timestamp,
	}
	if u.Err != nil {
		r.Error = u.Err.Error()
	}
	if rpcErr, ok := rpcerr.AsRPCError(u.Err); ok {
		r.Kind = rpcErr.Kind().String()
		r.Code = rpcErr.Code
		r.RPCID = rpcErr.ID
	}
	return r
}

// Sink publishes uncaught failures to an exchange
type Sink struct {
	publisher      Publisher
	exchange       string
	routingKey     string
	publishTimeout time.Duration
	next           sink.Sink
	logger         *slog.Logger
}

// Option configures the sink
type Option func(*Sink)

// WithExchange sets the target exchange
func WithExchange(exchange string) Option {
	return func(s *Sink) {
		s.exchange = exchange
	}
}

// WithRoutingKey sets the routing key
func WithRoutingKey(key string) Option {
	return func(s *Sink) {
		s.routingKey = key
	}
}

// WithPublishTimeout sets the publish timeout
func WithPublishTimeout(timeout time.Duration) Option {
	return func(s *Sink) {
		s.publishTimeout = timeout
	}
}

// WithNext sets the sink that receives failures which could not be published
func WithNext(next sink.Sink) Option {
	return func(s *Sink) {
		s.next = next
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) {
		s.logger = logger
	}
}

// New creates a new AMQP sink. The publisher is usually an *amqp.Channel.
func New(publisher Publisher, options ...Option) (*Sink, error) {
	if publisher == nil {
		return nil, ErrNilPublisher
	}

	s := &Sink{
		publisher:      publisher,
		exchange:       "errhook.errors",
		routingKey:     "uncaught",
		publishTimeout: 5 * time.Second,
		logger:         slog.Default(),
	}

	for _, opt := range options {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

// HandleUncaught implements sink.Sink
func (s *Sink) HandleUncaught(u sink.Uncaught) {
	if err := s.publish(u); err != nil {
		s.logger.Error("failed to publish failure report",
			"reportId", u.ID,
			"exchange", s.exchange,
			"error", err,
		)
		if s.next != nil {
			s.next.HandleUncaught(u)
		}
	}
}

func (s *Sink) publish(u sink.Uncaught) error {
	body, err := json.Marshal(NewReport(u))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.publishTimeout)
	defer cancel()

	return s.publisher.PublishWithContext(ctx, s.exchange, s.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    u.ID,
		Timestamp:    u.Timestamp,
		Type:         "errhook.UncaughtReport",
		Body:         body,
	})
}
