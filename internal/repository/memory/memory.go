// Package memory is an in-memory repository.Store for tests and local runs.
//
// A transaction takes the store lock for its whole lifetime and works on a
// private copy of the data; Commit swaps the copy in, Rollback drops it.
// Transactions are therefore serializable. Uniqueness and version rules match
// the SQL store.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phamhoa2416/ticket-booking/internal/apperr"
	"github.com/phamhoa2416/ticket-booking/internal/model"
	"github.com/phamhoa2416/ticket-booking/internal/repository"
)

// ErrReadOnly is returned for writes attempted through a read-only session.
var ErrReadOnly = errors.New("cannot execute write in a read-only transaction")

// ErrReferenced is returned when deleting a record other rows still point
// at, as the SQL foreign keys would.
var ErrReferenced = errors.New("record is still referenced")

type state struct {
	users      map[uuid.UUID]model.User
	customers  map[uuid.UUID]model.Customer
	organizers map[uuid.UUID]model.Organizer
	events     map[uuid.UUID]model.Event
	tickets    map[uuid.UUID]model.Ticket
}

func newState() *state {
	return &state{
		users:      map[uuid.UUID]model.User{},
		customers:  map[uuid.UUID]model.Customer{},
		organizers: map[uuid.UUID]model.Organizer{},
		events:     map[uuid.UUID]model.Event{},
		tickets:    map[uuid.UUID]model.Ticket{},
	}
}

func cloneMap[T any](m map[uuid.UUID]T) map[uuid.UUID]T {
	out := make(map[uuid.UUID]T, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		users:      cloneMap(s.users),
		customers:  cloneMap(s.customers),
		organizers: cloneMap(s.organizers),
		events:     cloneMap(s.events),
		tickets:    cloneMap(s.tickets),
	}
}

// Store is safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	data *state

	hookMu         sync.Mutex
	failCommit     []error
	begun          int
	commits        int
	readOnlyLeaks  int
	activeSessions int
}

func New() *Store {
	return &Store{data: newState()}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) Acquire(_ context.Context) (repository.Session, error) {
	s.hookMu.Lock()
	s.activeSessions++
	s.hookMu.Unlock()
	return &session{store: s}, nil
}

// FailNextCommit makes the next Commit return err without applying the
// transaction. Calls queue up.
func (s *Store) FailNextCommit(err error) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.failCommit = append(s.failCommit, err)
}

// Stats reports how many transactions were begun and committed.
func (s *Store) Stats() (begun, committed int) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	return s.begun, s.commits
}

// ReadOnlyLeaks counts sessions released while still marked read-only.
func (s *Store) ReadOnlyLeaks() int {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	return s.readOnlyLeaks
}

// ActiveSessions counts sessions acquired and not yet released.
func (s *Store) ActiveSessions() int {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	return s.activeSessions
}

func (s *Store) nextCommitFailure() error {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	if len(s.failCommit) == 0 {
		s.commits++
		return nil
	}
	err := s.failCommit[0]
	s.failCommit = s.failCommit[1:]
	return err
}

type session struct {
	store    *Store
	readOnly bool
	released bool
}

func (ss *session) SetReadOnly(_ context.Context, readOnly bool) error {
	ss.readOnly = readOnly
	return nil
}

func (ss *session) Begin(ctx context.Context) (repository.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ss.store.mu.Lock()
	ss.store.hookMu.Lock()
	ss.store.begun++
	ss.store.hookMu.Unlock()
	return &Tx{store: ss.store, work: ss.store.data.clone(), readOnly: ss.readOnly, now: time.Now}, nil
}

func (ss *session) Release() error {
	if ss.released {
		return nil
	}
	ss.released = true
	ss.store.hookMu.Lock()
	defer ss.store.hookMu.Unlock()
	ss.store.activeSessions--
	if ss.readOnly {
		ss.store.readOnlyLeaks++
	}
	return nil
}

// Tx is an open memory transaction.
type Tx struct {
	store    *Store
	work     *state
	readOnly bool
	done     bool
	now      func() time.Time
}

var _ repository.Tx = (*Tx)(nil)

func (tx *Tx) Users() repository.UserRepository           { return userRepo{tx} }
func (tx *Tx) Customers() repository.CustomerRepository   { return customerRepo{tx} }
func (tx *Tx) Organizers() repository.OrganizerRepository { return organizerRepo{tx} }
func (tx *Tx) Events() repository.EventRepository         { return eventRepo{tx} }
func (tx *Tx) Tickets() repository.TicketRepository       { return ticketRepo{tx} }

func (tx *Tx) Commit() error {
	if tx.done {
		return errors.New("transaction already finished")
	}
	tx.done = true
	defer tx.store.mu.Unlock()
	if err := tx.store.nextCommitFailure(); err != nil {
		return err
	}
	tx.store.data = tx.work
	return nil
}

func (tx *Tx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.store.mu.Unlock()
	return nil
}

func (tx *Tx) writable() error {
	if tx.done {
		return errors.New("transaction already finished")
	}
	if tx.readOnly {
		return ErrReadOnly
	}
	return nil
}

// update runs the optimistic check, applies the change, bumps the version
// and stores the record back.
func update[T any, PT interface {
	*T
	model.Record
}](tx *Tx, m map[uuid.UUID]T, id uuid.UUID, expected int64, resource string, apply func(PT) error) (PT, error) {
	if err := tx.writable(); err != nil {
		return nil, err
	}
	rec, ok := m[id]
	if !ok {
		return nil, apperr.NotFound(resource, id)
	}
	p := PT(&rec)
	if err := model.CheckRecordVersion(p, expected); err != nil {
		return nil, err
	}
	if err := apply(p); err != nil {
		return nil, err
	}
	p.IncrementVersion()
	m[id] = rec
	out := rec
	return &out, nil
}

func find[T any](m map[uuid.UUID]T, id uuid.UUID, resource string) (*T, error) {
	rec, ok := m[id]
	if !ok {
		return nil, apperr.NotFound(resource, id)
	}
	return &rec, nil
}

func remove[T any](tx *Tx, m map[uuid.UUID]T, id uuid.UUID) (bool, error) {
	if err := tx.writable(); err != nil {
		return false, err
	}
	if _, ok := m[id]; !ok {
		return false, nil
	}
	delete(m, id)
	return true, nil
}

// collect filters m and sorts by the given key so listings are stable.
func collect[T any](m map[uuid.UUID]T, keep func(T) bool, less func(a, b T) bool) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func paginate[T any](all []T, page repository.Page) []T {
	page = page.Normalize()
	start := page.Offset()
	if start >= len(all) {
		return []T{}
	}
	end := start + page.Size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

func byCreated(aAt, bAt time.Time, aID, bID uuid.UUID) bool {
	if !aAt.Equal(bAt) {
		return aAt.Before(bAt)
	}
	return aID.String() < bID.String()
}

func stamp(now time.Time) *time.Time {
	return &now
}
