package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phamhoa2416/ticket-booking/internal/apperr"
	"github.com/phamhoa2416/ticket-booking/internal/model"
	"github.com/phamhoa2416/ticket-booking/internal/repository"
)

func begin(t *testing.T, s *Store, readOnly bool) (repository.Session, repository.Tx) {
	t.Helper()
	ctx := context.Background()
	sess, err := s.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.SetReadOnly(ctx, readOnly))
	tx, err := sess.Begin(ctx)
	require.NoError(t, err)
	return sess, tx
}

func seedCustomer(t *testing.T, s *Store) model.Customer {
	t.Helper()
	c := model.Customer{ID: uuid.New(), UserID: uuid.New(), CreatedAt: time.Now()}
	sess, tx := begin(t, s, false)
	defer sess.Release()
	require.NoError(t, tx.Customers().Create(context.Background(), &c))
	require.NoError(t, tx.Commit())
	return c
}

func TestCommitPublishesAndRollbackDiscards(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := seedCustomer(t, s)

	sess, tx := begin(t, s, false)
	pts := int64(100)
	_, err := tx.Customers().Update(ctx, c.ID, model.CustomerPatch{LoyaltyPoints: &pts}, 0)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	require.NoError(t, sess.Release())

	sess, tx = begin(t, s, true)
	got, err := tx.Customers().FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.LoyaltyPoints)
	assert.Equal(t, int64(0), got.Version)
	require.NoError(t, tx.Rollback())
	require.NoError(t, sess.SetReadOnly(ctx, false))
	require.NoError(t, sess.Release())
	assert.Equal(t, 0, s.ReadOnlyLeaks())
	assert.Equal(t, 0, s.ActiveSessions())
}

func TestUpdateVersioning(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := seedCustomer(t, s)

	sess, tx := begin(t, s, false)
	defer sess.Release()
	pts := int64(10)
	updated, err := tx.Customers().Update(ctx, c.ID, model.CustomerPatch{LoyaltyPoints: &pts}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Version)
	assert.NotNil(t, updated.UpdatedAt)

	stale := int64(99)
	_, err = tx.Customers().Update(ctx, c.ID, model.CustomerPatch{LoyaltyPoints: &stale}, 0)
	var cme *apperr.ConcurrentModificationError
	require.ErrorAs(t, err, &cme)
	assert.Equal(t, int64(0), cme.Expected)
	assert.Equal(t, int64(1), cme.Actual)

	got, err := tx.Customers().FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.LoyaltyPoints)
	require.NoError(t, tx.Commit())
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	s := New()
	sess, tx := begin(t, s, true)
	defer func() {
		_ = tx.Rollback()
		_ = sess.Release()
	}()

	err := tx.Events().Create(context.Background(), &model.Event{ID: uuid.New()})
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()
	sess, tx := begin(t, s, false)
	defer sess.Release()

	u1 := model.User{ID: uuid.New(), Username: "alice", Email: "alice@example.com"}
	u2 := model.User{ID: uuid.New(), Username: "bob", Email: "ALICE@example.com"}
	require.NoError(t, tx.Users().Create(ctx, &u1))
	assert.ErrorIs(t, tx.Users().Create(ctx, &u2), apperr.ErrDuplicateResource)

	u3 := model.User{ID: uuid.New(), Username: "carol", Email: "carol@example.com"}
	require.NoError(t, tx.Users().Create(ctx, &u3))
	taken := "alice"
	_, err := tx.Users().Update(ctx, u3.ID, model.UserPatch{Username: &taken}, 0)
	assert.ErrorIs(t, err, apperr.ErrDuplicateResource)
	got, err := tx.Users().FindByUsername(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Version)

	c := model.Customer{ID: uuid.New(), UserID: u1.ID}
	require.NoError(t, tx.Customers().Create(ctx, &c))
	dup := model.Customer{ID: uuid.New(), UserID: u1.ID}
	assert.ErrorIs(t, tx.Customers().Create(ctx, &dup), apperr.ErrDuplicateResource)

	tk := model.Ticket{ID: uuid.New(), TicketNumber: "TKT-1", Price: decimal.NewFromInt(1)}
	require.NoError(t, tx.Tickets().Create(ctx, &tk))
	tk2 := model.Ticket{ID: uuid.New(), TicketNumber: "TKT-1"}
	assert.ErrorIs(t, tx.Tickets().Create(ctx, &tk2), apperr.ErrDuplicateResource)
	require.NoError(t, tx.Commit())
}

func TestFailNextCommit(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("commit lost")
	s.FailNextCommit(boom)

	sess, tx := begin(t, s, false)
	e := model.Event{ID: uuid.New(), Capacity: 10, AvailableTickets: 10}
	require.NoError(t, tx.Events().Create(ctx, &e))
	assert.ErrorIs(t, tx.Commit(), boom)
	assert.NoError(t, tx.Rollback())
	require.NoError(t, sess.Release())

	sess, tx = begin(t, s, false)
	defer sess.Release()
	_, err := tx.Events().FindByID(ctx, e.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	require.NoError(t, tx.Rollback())

	begun, committed := s.Stats()
	assert.Equal(t, 2, begun)
	assert.Equal(t, 0, committed)
}

func TestListingsArePagedAndFiltered(t *testing.T) {
	s := New()
	ctx := context.Background()
	sess, tx := begin(t, s, false)
	defer sess.Release()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	customer := uuid.New()
	for i := 0; i < 5; i++ {
		tk := model.Ticket{
			ID:           uuid.New(),
			TicketNumber: uuid.NewString(),
			CustomerID:   customer,
			PurchaseDate: base.Add(time.Duration(i) * time.Hour),
		}
		if i == 4 {
			tk.CustomerID = uuid.New()
		}
		require.NoError(t, tx.Tickets().Create(ctx, &tk))
	}

	mine, err := tx.Tickets().FindByCustomer(ctx, customer)
	require.NoError(t, err)
	assert.Len(t, mine, 4)
	assert.True(t, mine[0].PurchaseDate.Before(mine[3].PurchaseDate))

	page, err := tx.Tickets().FindAll(ctx, repository.Page{Number: 2, Size: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, base.Add(2*time.Hour), page[0].PurchaseDate)

	empty, err := tx.Tickets().FindAll(ctx, repository.Page{Number: 9, Size: 2})
	require.NoError(t, err)
	assert.Empty(t, empty)

	deleted, err := tx.Tickets().Delete(ctx, mine[0].ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = tx.Tickets().Delete(ctx, mine[0].ID)
	require.NoError(t, err)
	assert.False(t, deleted)
	require.NoError(t, tx.Commit())
}

func TestUserDeleteCascadesToProfiles(t *testing.T) {
	s := New()
	ctx := context.Background()
	sess, tx := begin(t, s, false)
	defer sess.Release()

	u := model.User{ID: uuid.New(), Username: "gone", Email: "gone@example.com", Role: model.RoleOrganizer}
	require.NoError(t, tx.Users().Create(ctx, &u))
	c := model.Customer{ID: uuid.New(), UserID: u.ID}
	require.NoError(t, tx.Customers().Create(ctx, &c))
	o := model.Organizer{ID: uuid.New(), UserID: u.ID, OrganizationName: "Gone Events"}
	require.NoError(t, tx.Organizers().Create(ctx, &o))

	deleted, err := tx.Users().Delete(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = tx.Customers().FindByID(ctx, c.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = tx.Organizers().FindByUserID(ctx, u.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	require.NoError(t, tx.Commit())
}

func TestDeleteOfReferencedRecordFails(t *testing.T) {
	s := New()
	ctx := context.Background()
	sess, tx := begin(t, s, false)
	defer sess.Release()

	u := model.User{ID: uuid.New(), Username: "holder", Email: "holder@example.com", Role: model.RoleCustomer}
	require.NoError(t, tx.Users().Create(ctx, &u))
	c := model.Customer{ID: uuid.New(), UserID: u.ID}
	require.NoError(t, tx.Customers().Create(ctx, &c))
	o := model.Organizer{ID: uuid.New(), UserID: uuid.New(), OrganizationName: "Busy Events"}
	require.NoError(t, tx.Organizers().Create(ctx, &o))
	ev := model.Event{ID: uuid.New(), OrganizerID: o.ID, Capacity: 1}
	require.NoError(t, tx.Events().Create(ctx, &ev))
	tk := model.Ticket{ID: uuid.New(), TicketNumber: "TKT-1", EventID: ev.ID, CustomerID: c.ID, Price: decimal.NewFromInt(10)}
	require.NoError(t, tx.Tickets().Create(ctx, &tk))

	_, err := tx.Customers().Delete(ctx, c.ID)
	assert.ErrorIs(t, err, ErrReferenced)
	_, err = tx.Users().Delete(ctx, u.ID)
	assert.ErrorIs(t, err, ErrReferenced)
	_, err = tx.Organizers().Delete(ctx, o.ID)
	assert.ErrorIs(t, err, ErrReferenced)
	_, err = tx.Events().Delete(ctx, ev.ID)
	assert.ErrorIs(t, err, ErrReferenced)

	_, err = tx.Users().FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
}
