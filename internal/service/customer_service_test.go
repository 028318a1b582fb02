package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phamhoa2416/ticket-booking/internal/apperr"
	"github.com/phamhoa2416/ticket-booking/internal/audit"
	"github.com/phamhoa2416/ticket-booking/internal/cache"
	"github.com/phamhoa2416/ticket-booking/internal/model"
)

func TestCreateCustomerRequiresCustomerRole(t *testing.T) {
	f := newFixture(t)
	u, actor := f.user(t, model.RoleOrganizer)

	_, err := f.customers.Create(context.Background(), actor, CreateCustomerInput{UserID: u.ID})
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "user_id", verr.Field)
}

func TestCreateCustomerOncePerUser(t *testing.T) {
	f := newFixture(t)
	c, actor := f.customer(t)

	_, err := f.customers.Create(context.Background(), actor, CreateCustomerInput{UserID: c.UserID})
	assert.ErrorIs(t, err, apperr.ErrDuplicateResource)
}

func TestLoyaltyPointsBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, actor := f.customer(t)

	_, err := f.customers.UpdateLoyaltyPoints(ctx, actor, c.ID, -1)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "LOYALTY_POINTS_UPDATE_FAILED", f.sink.last().Action)

	_, err = f.customers.UpdateLoyaltyPoints(ctx, actor, c.ID, 40)
	require.NoError(t, err)

	// the floor is checked on the computed balance, not only on the input
	_, err = f.customers.AddLoyaltyPoints(ctx, actor, c.ID, -41)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	got, err := f.customers.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), got.LoyaltyPoints)
	assert.Equal(t, int64(1), got.Version)
}

func TestTotalSpendingBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, actor := f.customer(t)

	_, err := f.customers.UpdateTotalSpending(ctx, actor, c.ID, decimal.RequireFromString("-0.01"))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	got, err := f.customers.RecordSpending(ctx, actor, c.ID, decimal.RequireFromString("120.50"))
	require.NoError(t, err)
	assert.True(t, got.TotalSpending.Equal(decimal.RequireFromString("120.50")))

	_, err = f.customers.RecordSpending(ctx, actor, c.ID, decimal.RequireFromString("-120.51"))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	ev := f.sink.last()
	assert.Equal(t, "TOTAL_SPENDING_UPDATE_FAILED", ev.Action)
	assert.Equal(t, "VALIDATION_ERROR", ev.Details["error_code"])
}

func TestLoyaltyAuditDetails(t *testing.T) {
	f := newFixture(t)
	c, actor := f.customer(t)

	_, err := f.customers.AddLoyaltyPoints(context.Background(), actor, c.ID, 150)
	require.NoError(t, err)

	ev := f.sink.last()
	assert.Equal(t, "LOYALTY_POINTS_UPDATED", ev.Action)
	assert.Equal(t, actor.ID.String(), ev.ActorID)
	assert.Equal(t, int64(0), ev.Details["previous_points"])
	assert.Equal(t, int64(150), ev.Details["new_points"])
	assert.Equal(t, int64(150), ev.Details["points_difference"])
}

func TestStaleVersionIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, actor := f.customer(t)

	_, err := f.customers.UpdateLoyaltyPoints(ctx, actor, c.ID, 10, IfVersion(0))
	require.NoError(t, err)

	_, err = f.customers.UpdateLoyaltyPoints(ctx, actor, c.ID, 99, IfVersion(0))
	var cme *apperr.ConcurrentModificationError
	require.ErrorAs(t, err, &cme)
	assert.Equal(t, int64(0), cme.Expected)
	assert.Equal(t, int64(1), cme.Actual)

	got, err := f.customers.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.LoyaltyPoints)
	assert.Equal(t, int64(1), got.Version)
}

func TestConcurrentIncrementsAreNotLost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, actor := f.customer(t)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.customers.AddLoyaltyPoints(ctx, actor, c.ID, 5)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := f.customers.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5*n), got.LoyaltyPoints)
	assert.Equal(t, int64(n), got.Version)
}

func TestCacheHoldsCommittedValue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, actor := f.customer(t)

	fresh, err := f.customers.UpdateLoyaltyPoints(ctx, actor, c.ID, 75)
	require.NoError(t, err)

	cached, ok := cache.Lookup[model.Customer](f.cache, cache.CustomerKey(c.ID))
	require.True(t, ok)
	assert.Equal(t, *fresh, cached)
	assert.Equal(t, int64(1), cached.Version)
}

func TestFailedCommitLeavesCacheAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, actor := f.customer(t)

	_, err := f.customers.GetByID(ctx, c.ID)
	require.NoError(t, err)

	f.store.FailNextCommit(errors.New("connection reset by peer"))
	_, err = f.customers.UpdateLoyaltyPoints(ctx, actor, c.ID, 500, IfVersion(0))
	assert.ErrorIs(t, err, apperr.ErrDatabaseTransaction)

	cached, ok := cache.Lookup[model.Customer](f.cache, cache.CustomerKey(c.ID))
	require.True(t, ok)
	assert.Equal(t, int64(0), cached.LoyaltyPoints)
	assert.Equal(t, int64(0), cached.Version)
}

func TestTransientCommitFailureIsRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, actor := f.customer(t)

	f.store.FailNextCommit(errors.New("deadlock found when trying to get lock"))
	got, err := f.customers.AddLoyaltyPoints(ctx, actor, c.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.LoyaltyPoints)
	assert.Equal(t, int64(1), got.Version)
}

func TestGetByIDLoadsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.customer(t)
	f.cache.Remove(cache.CustomerKey(c.ID))
	before, _ := f.store.Stats()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := f.customers.GetByID(ctx, c.ID)
			assert.NoError(t, err)
			assert.Equal(t, c.ID, got.ID)
		}()
	}
	wg.Wait()

	after, _ := f.store.Stats()
	assert.Equal(t, 1, after-before)
	assert.Equal(t, 0, f.store.ReadOnlyLeaks())
}

func TestGetByIDMissing(t *testing.T) {
	f := newFixture(t)
	_, err := f.customers.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCallerReceivesCopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.customer(t)

	got, err := f.customers.GetByID(ctx, c.ID)
	require.NoError(t, err)
	got.LoyaltyPoints = 1_000_000

	again, err := f.customers.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), again.LoyaltyPoints)
}

func TestAuditSinkFailureDoesNotFailMutation(t *testing.T) {
	f := newFixture(t, failingSink{})
	c, actor := f.customer(t)

	got, err := f.customers.AddLoyaltyPoints(context.Background(), actor, c.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.LoyaltyPoints)
	assert.Contains(t, f.sink.actions(), "LOYALTY_POINTS_UPDATED")
}

func TestOtherCustomerIsForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.customer(t)
	_, intruder := f.customer(t)

	_, err := f.customers.AddLoyaltyPoints(ctx, intruder, c.ID, 1000)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.customers.AddLoyaltyPoints(ctx, audit.Actor{ID: uuid.New(), Role: model.RoleAdmin}, c.ID, 5)
	require.NoError(t, err)
}

func TestDeleteCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, actor := f.customer(t)

	ok, err := f.customers.Delete(ctx, actor, c.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.customers.Delete(ctx, actor, c.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.customers.GetByID(ctx, c.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
