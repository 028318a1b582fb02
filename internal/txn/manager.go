// Package txn runs units of work against a repository.Store.
//
// Every failure observed inside a unit of work is rolled back and returned
// as an *apperr.DatabaseTransactionError that still unwraps to its cause.
package txn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/phamhoa2416/ticket-booking/internal/apperr"
	"github.com/phamhoa2416/ticket-booking/internal/repository"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 100 * time.Millisecond
)

// Work is the body of a unit of work. It must not keep tx after returning.
type Work func(ctx context.Context, tx repository.Tx) error

// Manager opens transactions. It is safe for concurrent use; each unit of
// work gets its own session.
type Manager struct {
	store       repository.Store
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
	tracer      trace.Tracer
	metrics     *Metrics
	sleep       func(ctx context.Context, d time.Duration) error
}

type Option func(*Manager)

// WithRetryPolicy sets the defaults used by WithRetry.
func WithRetryPolicy(maxAttempts int, baseDelay time.Duration) Option {
	return func(m *Manager) {
		if maxAttempts > 0 {
			m.maxAttempts = maxAttempts
		}
		if baseDelay >= 0 {
			m.baseDelay = baseDelay
		}
	}
}

func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.logger = l } }

func WithMetrics(mt *Metrics) Option { return func(m *Manager) { m.metrics = mt } }

func WithTracer(t trace.Tracer) Option { return func(m *Manager) { m.tracer = t } }

func NewManager(store repository.Store, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		logger:      slog.Default(),
		tracer:      otel.Tracer("ticket-booking/txn"),
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithTransaction runs fn in a read-write transaction and commits when fn
// returns nil.
func (m *Manager) WithTransaction(ctx context.Context, fn Work) error {
	if err := m.attempt(ctx, "transaction", false, 1, fn); err != nil {
		return &apperr.DatabaseTransactionError{Op: "transaction", Attempts: 1, Err: err}
	}
	return nil
}

// WithReadOnlyTransaction runs fn with the session marked read-only. The
// session is switched back to read-write on every exit path.
func (m *Manager) WithReadOnlyTransaction(ctx context.Context, fn Work) error {
	if err := m.attempt(ctx, "read-only transaction", true, 1, fn); err != nil {
		return &apperr.DatabaseTransactionError{Op: "read-only transaction", Attempts: 1, Err: err}
	}
	return nil
}

type retryConfig struct {
	maxAttempts int
	baseDelay   time.Duration
}

type RetryOption func(*retryConfig)

func MaxAttempts(n int) RetryOption {
	return func(c *retryConfig) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func BaseDelay(d time.Duration) RetryOption {
	return func(c *retryConfig) {
		if d >= 0 {
			c.baseDelay = d
		}
	}
}

// WithRetry runs fn in a fresh read-write transaction up to maxAttempts
// times. Attempt n that fails with a retryable error is followed by a pause
// of baseDelay*n. Non-retryable failures and the last failure are returned
// wrapped in a DatabaseTransactionError.
func (m *Manager) WithRetry(ctx context.Context, fn Work, opts ...RetryOption) error {
	cfg := retryConfig{maxAttempts: m.maxAttempts, baseDelay: m.baseDelay}
	for _, opt := range opts {
		opt(&cfg)
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= cfg.maxAttempts; attempt++ {
		attempts = attempt
		lastErr = m.attempt(ctx, "transaction", false, attempt, fn)
		if lastErr == nil {
			return nil
		}
		if !apperr.IsRetryable(lastErr) || attempt == cfg.maxAttempts {
			break
		}
		m.logger.Warn("transaction attempt failed, retrying",
			"attempt", attempt, "max_attempts", cfg.maxAttempts, "error", lastErr)
		m.metrics.retried()
		if err := m.sleep(ctx, cfg.baseDelay*time.Duration(attempt)); err != nil {
			lastErr = errors.Join(lastErr, err)
			break
		}
	}
	m.logger.Error("transaction failed", "attempts", attempts, "error", lastErr)
	return &apperr.DatabaseTransactionError{Op: "transaction", Attempts: attempts, Err: lastErr}
}

func (m *Manager) attempt(ctx context.Context, op string, readOnly bool, n int, fn Work) (err error) {
	ctx, span := m.tracer.Start(ctx, "txn.attempt", trace.WithAttributes(
		attribute.String("txn.op", op),
		attribute.Bool("txn.read_only", readOnly),
		attribute.Int("txn.attempt", n),
	))
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		m.metrics.observe(readOnly, time.Since(start), err)
	}()

	sess, err := m.store.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire session: %w", err)
	}
	defer func() {
		if rerr := sess.Release(); rerr != nil {
			m.logger.Warn("release session", "error", rerr)
		}
	}()

	if readOnly {
		if err := sess.SetReadOnly(ctx, true); err != nil {
			return fmt.Errorf("enter read-only mode: %w", err)
		}
		defer func() {
			// restore even when ctx is already cancelled
			if rerr := sess.SetReadOnly(context.WithoutCancel(ctx), false); rerr != nil {
				m.logger.Error("restore read-write mode", "error", rerr)
				if err == nil {
					err = fmt.Errorf("restore read-write mode: %w", rerr)
				}
			}
		}()
	}

	tx, err := sess.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil {
				m.logger.Warn("rollback", "error", rbErr)
			}
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
