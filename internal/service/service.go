// Package service holds the account mutation core. Every mutation follows
// the same cycle: validate the input, run a read-modify-write inside a
// transaction guarded by the record version, refresh the cache after the
// commit and finally emit an audit event. Cache and audit failures never
// replace the result of the mutation.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phamhoa2416/ticket-booking/internal/apperr"
	"github.com/phamhoa2416/ticket-booking/internal/audit"
	"github.com/phamhoa2416/ticket-booking/internal/cache"
	"github.com/phamhoa2416/ticket-booking/internal/model"
	"github.com/phamhoa2416/ticket-booking/internal/repository"
	"github.com/phamhoa2416/ticket-booking/internal/txn"
)

// Deps are the collaborators shared by all services.
type Deps struct {
	Tx     *txn.Manager
	Cache  *cache.Cache[any]
	Audit  *audit.Recorder
	Logger *slog.Logger
	// TTL overrides the cache's default lifetime for entries written here.
	TTL time.Duration
	Now func() time.Time
}

type base struct {
	Deps
}

func newBase(d Deps) base {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return base{Deps: d}
}

// action names the audit entries of one operation.
type action struct {
	done   string
	failed string
}

var (
	customerUpdated      = action{"CUSTOMER_UPDATED", "CUSTOMER_UPDATE_FAILED"}
	loyaltyPointsUpdated = action{"LOYALTY_POINTS_UPDATED", "LOYALTY_POINTS_UPDATE_FAILED"}
	totalSpendingUpdated = action{"TOTAL_SPENDING_UPDATED", "TOTAL_SPENDING_UPDATE_FAILED"}
	organizerUpdated     = action{"ORGANIZER_UPDATED", "ORGANIZER_UPDATE_FAILED"}
	ratingUpdated        = action{"RATING_UPDATED", "RATING_UPDATE_FAILED"}
	verificationUpdated  = action{"VERIFICATION_STATUS_UPDATED", "VERIFICATION_STATUS_UPDATE_FAILED"}
	userUpdated          = action{"USER_UPDATED", "USER_UPDATE_FAILED"}
	eventUpdated         = action{"EVENT_UPDATED", "EVENT_UPDATE_FAILED"}
	eventStatusUpdated   = action{"EVENT_STATUS_UPDATED", "EVENT_STATUS_UPDATE_FAILED"}
	inventoryAdjusted    = action{"INVENTORY_ADJUSTED", "INVENTORY_ADJUSTMENT_FAILED"}
	paymentConfirmed     = action{"TICKET_PAYMENT_CONFIRMED", "TICKET_PAYMENT_CONFIRMATION_FAILED"}
	ticketRefunded       = action{"TICKET_REFUNDED", "TICKET_REFUND_FAILED"}
	ticketCancelled      = action{"TICKET_CANCELLED", "TICKET_CANCELLATION_FAILED"}
	ticketUsed           = action{"TICKET_USED", "TICKET_USE_FAILED"}
	ticketExpired        = action{"TICKET_EXPIRED", "TICKET_EXPIRY_FAILED"}
	ticketTransferred    = action{"TICKET_TRANSFERRED", "TICKET_TRANSFER_FAILED"}
)

// MutateOption tunes a single mutation.
type MutateOption func(*mutateConfig)

type mutateConfig struct {
	expected *int64
}

// IfVersion makes the mutation fail with a ConcurrentModificationError
// unless the stored record is still at version v. A mutation carrying a
// client version is not retried since re-reading cannot make it succeed.
func IfVersion(v int64) MutateOption {
	return func(c *mutateConfig) { c.expected = &v }
}

func mutation(opts []MutateOption) mutateConfig {
	var c mutateConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// check compares the freshly read record with the caller's version.
func (c mutateConfig) check(r model.Record) error {
	if c.expected == nil {
		return nil
	}
	return model.CheckRecordVersion(r, *c.expected)
}

// write runs fn as one unit of work, retrying on transient failures
// unless the caller pinned a version.
func (b *base) write(ctx context.Context, cfg mutateConfig, fn txn.Work) error {
	if cfg.expected != nil {
		return b.Tx.WithTransaction(ctx, fn)
	}
	return b.Tx.WithRetry(ctx, fn)
}

func (b *base) read(ctx context.Context, fn txn.Work) error {
	return b.Tx.WithReadOnlyTransaction(ctx, fn)
}

func (b *base) set(key string, v any) {
	b.Cache.Set(key, v, b.TTL)
}

func (b *base) evict(keys ...string) {
	for _, k := range keys {
		b.Cache.Remove(k)
	}
}

func (b *base) evictPrefix(prefixes ...string) {
	for _, p := range prefixes {
		b.Cache.RemovePrefix(p)
	}
}

// fetch reads one record through the cache. Cached values are stored by
// value so callers can never mutate a shared entry.
func fetch[T any](ctx context.Context, b *base, key string, find func(ctx context.Context, tx repository.Tx) (*T, error)) (*T, error) {
	v, err := cache.Load(ctx, b.Cache, key, b.TTL, func(ctx context.Context) (T, error) {
		var out T
		err := b.read(ctx, func(ctx context.Context, tx repository.Tx) error {
			rec, err := find(ctx, tx)
			if err != nil {
				return err
			}
			out = *rec
			return nil
		})
		return out, err
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// fetchList is fetch for listings.
func fetchList[T any](ctx context.Context, b *base, key string, find func(ctx context.Context, tx repository.Tx) ([]T, error)) ([]T, error) {
	return cache.Load(ctx, b.Cache, key, b.TTL, func(ctx context.Context) ([]T, error) {
		var out []T
		err := b.read(ctx, func(ctx context.Context, tx repository.Tx) (err error) {
			out, err = find(ctx, tx)
			return err
		})
		return out, err
	})
}

func isPrivileged(actor audit.Actor) bool {
	return actor.IsSystem() || actor.Role == model.RoleAdmin
}

// requireOwner allows admins, background jobs and the user that owns the
// resource.
func requireOwner(actor audit.Actor, resource string, ownerUserID uuid.UUID) error {
	if isPrivileged(actor) || actor.ID == ownerUserID {
		return nil
	}
	return fmt.Errorf("%w: %s does not belong to user %s", apperr.ErrForbidden, resource, actor.ID)
}
