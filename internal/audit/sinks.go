package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// LogSink writes each event as one structured log record.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Write(ctx context.Context, e Event) error {
	level := slog.LevelInfo
	if e.Failed {
		level = slog.LevelError
	}
	s.Logger.Log(ctx, level, e.String(), "audit_action", e.Action)
	return nil
}

// Queue is the durable queue audit events are published to.
const Queue = "audit.events"

const (
	amqpDialTimeout = 2 * time.Second
	amqpRedialAfter = 10 * time.Second
)

// ErrSinkUnavailable is returned while the AMQP sink waits out its redial
// backoff.
var ErrSinkUnavailable = errors.New("rabbitmq: broker unavailable")

// AMQPSink publishes events to RabbitMQ as persistent JSON messages. The
// connection is opened on first use and re-dialled after a failure, at most
// once per redial interval and with a bounded dial timeout, so an unreachable
// broker costs a request no more than one short dial.
type AMQPSink struct {
	url   string
	queue string

	dialTimeout time.Duration
	redialAfter time.Duration
	dial        func(url string, cfg amqp.Config) (*amqp.Connection, error)
	now         func() time.Time

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	nextDial time.Time
}

func NewAMQPSink(url, queue string) *AMQPSink {
	if queue == "" {
		queue = Queue
	}
	return &AMQPSink{
		url:         url,
		queue:       queue,
		dialTimeout: amqpDialTimeout,
		redialAfter: amqpRedialAfter,
		dial:        amqp.DialConfig,
		now:         time.Now,
	}
}

func (s *AMQPSink) channel() (*amqp.Channel, error) {
	if s.ch != nil && !s.ch.IsClosed() {
		return s.ch, nil
	}
	s.closeLocked()
	now := s.now()
	if now.Before(s.nextDial) {
		return nil, ErrSinkUnavailable
	}
	conn, err := s.dial(s.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(s.dialTimeout),
	})
	if err != nil {
		s.nextDial = now.Add(s.redialAfter)
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: channel open: %w", err)
	}
	// durable so events survive broker restarts
	if _, err := ch.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: queue declare: %w", err)
	}
	s.conn, s.ch = conn, ch
	return ch, nil
}

func (s *AMQPSink) Write(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ch, err := s.channel()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, "", s.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		s.closeLocked()
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}
	return nil
}

func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *AMQPSink) closeLocked() error {
	var errs []error
	if s.ch != nil {
		if err := s.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	s.conn, s.ch = nil, nil
	return errors.Join(errs...)
}
