package txn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phamhoa2416/ticket-booking/internal/apperr"
	"github.com/phamhoa2416/ticket-booking/internal/model"
	"github.com/phamhoa2416/ticket-booking/internal/repository"
	"github.com/phamhoa2416/ticket-booking/internal/repository/memory"
)

func newTestManager(t *testing.T, store repository.Store, opts ...Option) (*Manager, *[]time.Duration) {
	t.Helper()
	m := NewManager(store, opts...)
	var slept []time.Duration
	m.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return m, &slept
}

func TestWithRetryExhaustion(t *testing.T) {
	m, slept := newTestManager(t, memory.New())
	boom := errors.New("deadlock found")
	calls := 0

	err := m.WithRetry(context.Background(), func(context.Context, repository.Tx) error {
		calls++
		return boom
	})

	assert.Equal(t, 3, calls)
	var dte *apperr.DatabaseTransactionError
	require.ErrorAs(t, err, &dte)
	assert.Equal(t, 3, dte.Attempts)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, *slept)
}

func TestWithRetryRecovers(t *testing.T) {
	m, slept := newTestManager(t, memory.New())
	calls := 0
	err := m.WithRetry(context.Background(), func(context.Context, repository.Tx) error {
		calls++
		if calls < 2 {
			return &apperr.ConcurrentModificationError{Resource: "Customer"}
		}
		return nil
	}, MaxAttempts(5), BaseDelay(10*time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond}, *slept)
}

func TestWithRetryStopsOnFinalErrors(t *testing.T) {
	final := []error{
		apperr.Validation("rating", "must be between 0 and 5"),
		apperr.NotFound("Customer", "c-1"),
		&apperr.InvalidStateTransitionError{Resource: "Ticket", From: "USED", To: "CONFIRMED"},
		&apperr.DuplicateResourceError{Resource: "User", Identifier: "a@b.c"},
	}
	for _, cause := range final {
		m, slept := newTestManager(t, memory.New())
		calls := 0
		err := m.WithRetry(context.Background(), func(context.Context, repository.Tx) error {
			calls++
			return cause
		})
		assert.Equal(t, 1, calls, "%T retried", cause)
		assert.Empty(t, *slept)
		assert.ErrorIs(t, err, apperr.ErrDatabaseTransaction)
		assert.ErrorIs(t, err, cause)
	}
}

func TestWithRetryHonoursCancellation(t *testing.T) {
	m := NewManager(memory.New(), WithRetryPolicy(3, time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := m.WithRetry(ctx, func(context.Context, repository.Tx) error {
		calls++
		cancel()
		return errors.New("timeout")
	})
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	store := memory.New()
	m, _ := newTestManager(t, store)
	ctx := context.Background()
	id := uuid.New()

	err := m.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.Events().Create(ctx, &model.Event{ID: id, Capacity: 1, AvailableTickets: 1}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	assert.ErrorIs(t, err, apperr.ErrDatabaseTransaction)

	err = m.WithReadOnlyTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		_, err := tx.Events().FindByID(ctx, id)
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestWithTransactionCommitFailure(t *testing.T) {
	store := memory.New()
	m, _ := newTestManager(t, store)
	store.FailNextCommit(errors.New("connection reset"))

	err := m.WithTransaction(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.Events().Create(ctx, &model.Event{ID: uuid.New()})
	})
	var dte *apperr.DatabaseTransactionError
	require.ErrorAs(t, err, &dte)
	assert.Contains(t, err.Error(), "commit")
	_, committed := store.Stats()
	assert.Equal(t, 0, committed)
}

func TestReadOnlyModeIsRestored(t *testing.T) {
	store := memory.New()
	m, _ := newTestManager(t, store)
	ctx := context.Background()

	err := m.WithReadOnlyTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.Events().Create(ctx, &model.Event{ID: uuid.New()})
	})
	assert.ErrorIs(t, err, memory.ErrReadOnly)

	require.NoError(t, m.WithReadOnlyTransaction(ctx, func(context.Context, repository.Tx) error { return nil }))

	assert.Panics(t, func() {
		_ = m.WithReadOnlyTransaction(ctx, func(context.Context, repository.Tx) error { panic("boom") })
	})

	assert.Equal(t, 0, store.ReadOnlyLeaks())
	assert.Equal(t, 0, store.ActiveSessions())

	require.NoError(t, m.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.Events().Create(ctx, &model.Event{ID: uuid.New()})
	}))
}

type failingSession struct {
	repository.Session
	restoreErr error
	modes      []bool
}

func (s *failingSession) SetReadOnly(ctx context.Context, ro bool) error {
	s.modes = append(s.modes, ro)
	if !ro && s.restoreErr != nil {
		return s.restoreErr
	}
	return s.Session.SetReadOnly(ctx, ro)
}

type sessionStore struct {
	inner repository.Store
	last  *failingSession
	err   error
}

func (s *sessionStore) Acquire(ctx context.Context) (repository.Session, error) {
	inner, err := s.inner.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	s.last = &failingSession{Session: inner, restoreErr: s.err}
	return s.last, nil
}

func TestReadOnlyRestoreFailureSurfaces(t *testing.T) {
	store := &sessionStore{inner: memory.New(), err: errors.New("conn gone")}
	m, _ := newTestManager(t, store)

	err := m.WithReadOnlyTransaction(context.Background(), func(context.Context, repository.Tx) error { return nil })
	assert.ErrorIs(t, err, apperr.ErrDatabaseTransaction)
	assert.Contains(t, err.Error(), "restore read-write mode")
	assert.Equal(t, []bool{true, false}, store.last.modes)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	mt, err := NewMetrics("test", reg)
	require.NoError(t, err)
	m, _ := newTestManager(t, memory.New(), WithMetrics(mt))

	_ = m.WithRetry(context.Background(), func(context.Context, repository.Tx) error {
		return errors.New("flaky")
	})
	require.NoError(t, m.WithReadOnlyTransaction(context.Background(), func(context.Context, repository.Tx) error { return nil }))

	assert.Equal(t, 3.0, testutil.ToFloat64(mt.attempts.WithLabelValues("false", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.attempts.WithLabelValues("true", "committed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(mt.retries))
}
