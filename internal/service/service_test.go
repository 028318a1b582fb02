package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/phamhoa2416/ticket-booking/internal/audit"
	"github.com/phamhoa2416/ticket-booking/internal/cache"
	"github.com/phamhoa2416/ticket-booking/internal/model"
	"github.com/phamhoa2416/ticket-booking/internal/repository/memory"
	"github.com/phamhoa2416/ticket-booking/internal/txn"
)

type memSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *memSink) Write(_ context.Context, e audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *memSink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Action
	}
	return out
}

func (s *memSink) last() audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

type failingSink struct{}

func (failingSink) Write(context.Context, audit.Event) error { return errors.New("audit store offline") }

type fixture struct {
	store *memory.Store
	cache *cache.Cache[any]
	sink  *memSink

	users      *UserService
	customers  *CustomerService
	organizers *OrganizerService
	events     *EventService
	tickets    *TicketService
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)) }

func newFixture(t *testing.T, sinks ...audit.Sink) *fixture {
	t.Helper()
	store := memory.New()
	c := cache.New[any](cache.WithDefaultTTL(time.Minute), cache.WithLogger(quietLogger()))
	sink := &memSink{}
	d := Deps{
		Tx:     txn.NewManager(store, txn.WithRetryPolicy(3, time.Millisecond), txn.WithLogger(quietLogger())),
		Cache:  c,
		Audit:  audit.NewRecorder(quietLogger(), append(sinks, sink)...),
		Logger: quietLogger(),
	}
	return &fixture{
		store:      store,
		cache:      c,
		sink:       sink,
		users:      NewUserService(d, bcrypt.MinCost),
		customers:  NewCustomerService(d),
		organizers: NewOrganizerService(d),
		events:     NewEventService(d),
		tickets:    NewTicketService(d),
	}
}

var seq int

func (f *fixture) user(t *testing.T, role model.UserRole) (*model.User, audit.Actor) {
	t.Helper()
	seq++
	u, err := f.users.Create(context.Background(), audit.System, CreateUserInput{
		Username:    fmt.Sprintf("user_%d", seq),
		Email:       fmt.Sprintf("user%d@example.com", seq),
		Password:    "Secr3t@pass",
		PhoneNumber: "+12345678901",
		Role:        role,
	})
	require.NoError(t, err)
	return u, audit.Actor{ID: u.ID, Role: u.Role}
}

func (f *fixture) customer(t *testing.T) (*model.Customer, audit.Actor) {
	t.Helper()
	u, actor := f.user(t, model.RoleCustomer)
	c, err := f.customers.Create(context.Background(), actor, CreateCustomerInput{UserID: u.ID})
	require.NoError(t, err)
	return c, actor
}

func (f *fixture) organizer(t *testing.T) (*model.Organizer, audit.Actor) {
	t.Helper()
	u, actor := f.user(t, model.RoleOrganizer)
	o, err := f.organizers.Create(context.Background(), actor, CreateOrganizerInput{UserID: u.ID, OrganizationName: "Night Owls"})
	require.NoError(t, err)
	return o, actor
}

// publishedEvent creates an event with the given capacity and walks it to
// PUBLISHED.
func (f *fixture) publishedEvent(t *testing.T, capacity int64) (*model.Event, audit.Actor) {
	t.Helper()
	ctx := context.Background()
	org, actor := f.organizer(t)
	start := time.Now().Add(48 * time.Hour).UTC()
	ev, err := f.events.Create(ctx, actor, CreateEventInput{
		OrganizerID: org.ID,
		Title:       "Harbour Lights",
		Category:    "concert",
		StartsAt:    start,
		EndsAt:      start.Add(3 * time.Hour),
		Capacity:    capacity,
		BasePrice:   decimal.RequireFromString("25.00"),
	})
	require.NoError(t, err)
	_, err = f.events.UpdateStatus(ctx, actor, ev.ID, model.EventPendingApproval)
	require.NoError(t, err)
	ev, err = f.events.UpdateStatus(ctx, audit.System, ev.ID, model.EventPublished)
	require.NoError(t, err)
	return ev, actor
}
