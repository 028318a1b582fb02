package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phamhoa2416/ticket-booking/internal/apperr"
	"github.com/phamhoa2416/ticket-booking/internal/audit"
	"github.com/phamhoa2416/ticket-booking/internal/model"
)

func TestCreateEventCountsAgainstOrganizer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org, actor := f.organizer(t)
	start := time.Now().Add(24 * time.Hour)

	ev, err := f.events.Create(ctx, actor, CreateEventInput{
		OrganizerID: org.ID, Title: "Quiet Pines", Category: "workshop",
		StartsAt: start, EndsAt: start.Add(2 * time.Hour), Capacity: 40,
	})
	require.NoError(t, err)
	assert.Equal(t, model.EventDraft, ev.Status)
	assert.Equal(t, int64(40), ev.AvailableTickets)
	assert.Equal(t, model.CategoryWorkshop, ev.Category)

	got, err := f.organizers.GetByID(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.TotalEvents)

	list, err := f.events.ListByOrganizer(ctx, org.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateEventValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org, actor := f.organizer(t)
	start := time.Now().Add(time.Hour)

	cases := map[string]CreateEventInput{
		"title":    {OrganizerID: org.ID, Title: "  ", StartsAt: start, EndsAt: start.Add(time.Hour), Capacity: 1},
		"capacity": {OrganizerID: org.ID, Title: "X", StartsAt: start, EndsAt: start.Add(time.Hour)},
		"ends_at":  {OrganizerID: org.ID, Title: "X", StartsAt: start, EndsAt: start, Capacity: 1},
	}
	for field, in := range cases {
		t.Run(field, func(t *testing.T) {
			_, err := f.events.Create(ctx, actor, in)
			var verr *apperr.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, field, verr.Field)
		})
	}
}

func TestCreateEventForOtherOrganizerIsForbidden(t *testing.T) {
	f := newFixture(t)
	org, _ := f.organizer(t)
	_, other := f.organizer(t)
	start := time.Now().Add(time.Hour)

	_, err := f.events.Create(context.Background(), other, CreateEventInput{
		OrganizerID: org.ID, Title: "Borrowed", StartsAt: start, EndsAt: start.Add(time.Hour), Capacity: 5,
	})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestAdjustInventoryBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev, actor := f.publishedEvent(t, 10)

	_, err := f.events.AdjustInventory(ctx, actor, ev.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.events.AdjustInventory(ctx, actor, ev.ID, -11)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	got, err := f.events.AdjustInventory(ctx, actor, ev.ID, -10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.AvailableTickets)
	assert.Equal(t, model.EventSoldOut, got.Status)

	got, err = f.events.AdjustInventory(ctx, actor, ev.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.AvailableTickets)
	assert.Equal(t, model.EventPublished, got.Status)
	assert.Equal(t, "INVENTORY_ADJUSTED", f.sink.last().Action)
}

func TestUpdateStatusFollowsLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org, actor := f.organizer(t)
	start := time.Now().Add(time.Hour)
	ev, err := f.events.Create(ctx, actor, CreateEventInput{
		OrganizerID: org.ID, Title: "Lantern Walk", StartsAt: start, EndsAt: start.Add(time.Hour), Capacity: 5,
	})
	require.NoError(t, err)

	_, err = f.events.UpdateStatus(ctx, actor, ev.ID, model.EventPublished)
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)

	_, err = f.events.UpdateStatus(ctx, actor, ev.ID, model.EventStatus("LIVE"))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.events.UpdateStatus(ctx, actor, ev.ID, model.EventPendingApproval)
	require.NoError(t, err)
	got, err := f.events.UpdateStatus(ctx, audit.System, ev.ID, model.EventPublished)
	require.NoError(t, err)
	assert.Equal(t, model.EventPublished, got.Status)

	_, err = f.events.UpdateStatus(ctx, actor, ev.ID, model.EventSoldOut)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	title := "Lantern Walk II"
	_, err = f.events.Update(ctx, actor, ev.ID, UpdateEventInput{Title: &title})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
