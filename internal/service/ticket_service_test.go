package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phamhoa2416/ticket-booking/internal/apperr"
	"github.com/phamhoa2416/ticket-booking/internal/audit"
	"github.com/phamhoa2416/ticket-booking/internal/cache"
	"github.com/phamhoa2416/ticket-booking/internal/model"
)

func TestIssueDecrementsInventory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev, _ := f.publishedEvent(t, 3)
	c, actor := f.customer(t)

	tk, err := f.tickets.Issue(ctx, actor, IssueTicketInput{EventID: ev.ID, CustomerID: c.ID})
	require.NoError(t, err)
	assert.Equal(t, model.TicketConfirmed, tk.Status)
	assert.True(t, tk.Price.Equal(ev.BasePrice))
	assert.Regexp(t, `^TKT-[0-9A-F]{16}$`, tk.TicketNumber)

	got, err := f.events.GetByID(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.AvailableTickets)
	assert.Equal(t, "TICKET_ISSUED", f.sink.last().Action)
}

func TestIssueLastTicketSellsOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev, _ := f.publishedEvent(t, 1)
	c, actor := f.customer(t)

	_, err := f.tickets.Issue(ctx, actor, IssueTicketInput{EventID: ev.ID, CustomerID: c.ID})
	require.NoError(t, err)

	got, err := f.events.GetByID(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.AvailableTickets)
	assert.Equal(t, model.EventSoldOut, got.Status)

	_, err = f.tickets.Issue(ctx, actor, IssueTicketInput{EventID: ev.ID, CustomerID: c.ID})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	tickets, err := f.tickets.ListByEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Len(t, tickets, 1)
}

func TestIssueRequiresEventOnSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org, orgActor := f.organizer(t)
	c, actor := f.customer(t)
	start := time.Now().Add(time.Hour)
	ev, err := f.events.Create(ctx, orgActor, CreateEventInput{
		OrganizerID: org.ID, Title: "Draft Night", StartsAt: start, EndsAt: start.Add(time.Hour), Capacity: 10,
	})
	require.NoError(t, err)

	_, err = f.tickets.Issue(ctx, actor, IssueTicketInput{EventID: ev.ID, CustomerID: c.ID})
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "event_id", verr.Field)

	got, err := f.events.GetByID(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.AvailableTickets)
}

func TestIssueRejectsBadSeat(t *testing.T) {
	f := newFixture(t)
	ev, _ := f.publishedEvent(t, 5)
	c, actor := f.customer(t)
	seat := "12A"

	_, err := f.tickets.Issue(context.Background(), actor, IssueTicketInput{EventID: ev.ID, CustomerID: c.ID, SeatNumber: &seat})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestPendingPaymentFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev, _ := f.publishedEvent(t, 5)
	c, actor := f.customer(t)

	tk, err := f.tickets.Issue(ctx, actor, IssueTicketInput{EventID: ev.ID, CustomerID: c.ID, PendingPayment: true})
	require.NoError(t, err)
	assert.Equal(t, model.TicketPendingPayment, tk.Status)

	tk, err = f.tickets.ConfirmPayment(ctx, actor, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketConfirmed, tk.Status)

	_, err = f.tickets.ConfirmPayment(ctx, actor, tk.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
}

func TestRefundReturnsSeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev, _ := f.publishedEvent(t, 1)
	c, actor := f.customer(t)
	tk, err := f.tickets.Issue(ctx, actor, IssueTicketInput{EventID: ev.ID, CustomerID: c.ID})
	require.NoError(t, err)

	_, err = f.tickets.Refund(ctx, actor, tk.ID, decimal.RequireFromString("25.01"))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	refunded, err := f.tickets.Refund(ctx, actor, tk.ID, decimal.RequireFromString("20"))
	require.NoError(t, err)
	assert.Equal(t, model.TicketRefunded, refunded.Status)
	require.NotNil(t, refunded.RefundAmount)
	assert.True(t, refunded.RefundAmount.Equal(decimal.NewFromInt(20)))
	assert.NotNil(t, refunded.RefundDate)

	got, err := f.events.GetByID(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.AvailableTickets)
	assert.Equal(t, model.EventPublished, got.Status)

	_, err = f.tickets.Cancel(ctx, actor, tk.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
}

func TestCancelReturnsSeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev, _ := f.publishedEvent(t, 2)
	c, actor := f.customer(t)
	tk, err := f.tickets.Issue(ctx, actor, IssueTicketInput{EventID: ev.ID, CustomerID: c.ID})
	require.NoError(t, err)

	_, err = f.tickets.Cancel(ctx, actor, tk.ID)
	require.NoError(t, err)

	got, err := f.events.GetByID(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.AvailableTickets)

	cached, ok := cache.Lookup[model.Ticket](f.cache, cache.TicketKey(tk.ID))
	require.True(t, ok)
	assert.Equal(t, model.TicketCancelled, cached.Status)
}

func TestUsedTicketCannotBeConfirmedAgain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev, orgActor := f.publishedEvent(t, 2)
	c, actor := f.customer(t)
	tk, err := f.tickets.Issue(ctx, actor, IssueTicketInput{EventID: ev.ID, CustomerID: c.ID})
	require.NoError(t, err)

	_, err = f.tickets.MarkUsed(ctx, actor, tk.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	used, err := f.tickets.MarkUsed(ctx, orgActor, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketUsed, used.Status)

	_, err = f.tickets.ConfirmPayment(ctx, audit.System, tk.ID)
	var terr *apperr.InvalidStateTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "USED", terr.From)
	assert.Equal(t, "CONFIRMED", terr.To)
}

func TestExpireIsPrivileged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev, _ := f.publishedEvent(t, 2)
	c, actor := f.customer(t)
	tk, err := f.tickets.Issue(ctx, actor, IssueTicketInput{EventID: ev.ID, CustomerID: c.ID})
	require.NoError(t, err)

	_, err = f.tickets.Expire(ctx, actor, tk.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	expired, err := f.tickets.Expire(ctx, audit.System, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketExpired, expired.Status)
}

func TestTransferReissues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev, _ := f.publishedEvent(t, 3)
	from, actor := f.customer(t)
	to, _ := f.customer(t)
	tk, err := f.tickets.Issue(ctx, actor, IssueTicketInput{EventID: ev.ID, CustomerID: from.ID})
	require.NoError(t, err)

	old, issued, err := f.tickets.Transfer(ctx, actor, tk.ID, to.ID)
	require.NoError(t, err)

	assert.Equal(t, model.TicketTransferred, old.Status)
	assert.Equal(t, int64(1), old.TransferCount)
	assert.NotNil(t, old.LastTransferDate)

	assert.NotEqual(t, old.ID, issued.ID)
	assert.NotEqual(t, old.TicketNumber, issued.TicketNumber)
	assert.Equal(t, to.ID, issued.CustomerID)
	assert.Equal(t, model.TicketConfirmed, issued.Status)
	assert.Equal(t, int64(1), issued.TransferCount)
	assert.True(t, issued.Price.Equal(old.Price))

	got, err := f.events.GetByID(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.AvailableTickets)

	mine, err := f.tickets.ListByCustomer(ctx, to.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, issued.ID, mine[0].ID)

	_, _, err = f.tickets.Transfer(ctx, actor, tk.ID, to.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
}

func TestTransferToUnknownCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev, _ := f.publishedEvent(t, 3)
	c, actor := f.customer(t)
	tk, err := f.tickets.Issue(ctx, actor, IssueTicketInput{EventID: ev.ID, CustomerID: c.ID})
	require.NoError(t, err)

	_, _, err = f.tickets.Transfer(ctx, actor, tk.ID, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, _, err = f.tickets.Transfer(ctx, actor, tk.ID, c.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	got, err := f.tickets.GetByID(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketConfirmed, got.Status)
	assert.Equal(t, int64(0), got.Version)
}

func TestTicketVersionGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev, _ := f.publishedEvent(t, 3)
	c, actor := f.customer(t)
	tk, err := f.tickets.Issue(ctx, actor, IssueTicketInput{EventID: ev.ID, CustomerID: c.ID, PendingPayment: true})
	require.NoError(t, err)

	_, err = f.tickets.Cancel(ctx, actor, tk.ID, IfVersion(7))
	assert.ErrorIs(t, err, apperr.ErrConcurrentModification)

	got, err := f.events.GetByID(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.AvailableTickets)
}
