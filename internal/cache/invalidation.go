package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// OpKey invalidates one key; OpPrefix every key under a prefix.
	OpKey    = "key"
	OpPrefix = "prefix"

	publishTimeout = time.Second
)

// Invalidation is the message peers exchange when a key goes stale.
type Invalidation struct {
	Origin string `json:"origin"`
	Op     string `json:"op"`
	Target string `json:"target"`
}

// Invalidator fans local invalidations out to other instances.
type Invalidator interface {
	Publish(ctx context.Context, inv Invalidation) error
}

// localEvicter is the part of a Cache a subscriber drives. It never
// re-broadcasts.
type localEvicter interface {
	removeLocal(key string)
	removePrefixLocal(prefix string) int
}

// RedisInvalidator publishes invalidations on a Redis channel and applies
// the ones published by other instances. TTL expiry remains the safety net
// for messages lost while a subscriber is disconnected.
type RedisInvalidator struct {
	rdb     *redis.Client
	channel string
	origin  string
	logger  *slog.Logger
}

func NewRedisInvalidator(rdb *redis.Client, channel string, logger *slog.Logger) *RedisInvalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisInvalidator{
		rdb:     rdb,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger,
	}
}

func (r *RedisInvalidator) Publish(ctx context.Context, inv Invalidation) error {
	inv.Origin = r.origin
	body, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, body).Err()
}

// Subscribe applies peer invalidations to c until ctx is done.
func (r *RedisInvalidator) Subscribe(ctx context.Context, c localEvicter) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.apply(c, []byte(msg.Payload))
		}
	}
}

func (r *RedisInvalidator) apply(c localEvicter, payload []byte) {
	var inv Invalidation
	if err := json.Unmarshal(payload, &inv); err != nil {
		r.logger.Warn("bad cache invalidation", "error", err)
		return
	}
	if inv.Origin == r.origin {
		return
	}
	switch inv.Op {
	case OpKey:
		c.removeLocal(inv.Target)
	case OpPrefix:
		c.removePrefixLocal(inv.Target)
	default:
		r.logger.Warn("unknown cache invalidation op", "op", inv.Op)
	}
}
