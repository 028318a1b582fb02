// Package cache is the process-wide TTL cache that fronts the store.
//
// The cache is not write-through: every mutation path refreshes or removes
// the keys it made stale, and only after its transaction committed. Expired
// entries are never returned; the janitor only reclaims memory.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/phamhoa2416/ticket-booking/internal/apperr"
)

// DefaultTTL applies when a caller passes ttl <= 0.
const DefaultTTL = 30 * time.Minute

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e entry[V]) expired(now time.Time) bool { return !now.Before(e.expiresAt) }

// Cache is a concurrency-safe map with per-entry expiry and key-scoped
// single-flight loading. The zero value is not usable; call New.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	// loading marks keys with a load in flight; true means the key was
	// written or removed meanwhile and the load result must not be stored.
	loading map[string]bool

	group singleflight.Group

	defaultTTL  time.Duration
	metrics     *Metrics
	invalidator Invalidator
	logger      *slog.Logger
}

type Option func(*options)

type options struct {
	defaultTTL  time.Duration
	metrics     *Metrics
	invalidator Invalidator
	logger      *slog.Logger
}

func WithDefaultTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.defaultTTL = ttl
		}
	}
}

func WithMetrics(m *Metrics) Option { return func(o *options) { o.metrics = m } }

// WithInvalidator broadcasts every local Set and Remove to peer instances.
func WithInvalidator(inv Invalidator) Option { return func(o *options) { o.invalidator = inv } }

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

func New[V any](opts ...Option) *Cache[V] {
	o := options{defaultTTL: DefaultTTL, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[V]{
		entries:     make(map[string]entry[V]),
		loading:     make(map[string]bool),
		defaultTTL:  o.defaultTTL,
		metrics:     o.metrics,
		invalidator: o.invalidator,
		logger:      o.logger,
	}
}

// Get returns the live value for key. An expired entry is dropped and
// reported absent.
func (c *Cache[V]) Get(key string) (V, bool) {
	now := time.Now()
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && !e.expired(now) {
		c.metrics.hit()
		return e.value, true
	}
	if ok {
		c.mu.Lock()
		// re-check: a Set may have replaced the entry since RUnlock
		if cur, still := c.entries[key]; still && cur.expired(now) {
			delete(c.entries, key)
			c.metrics.evicted("expired", 1)
		}
		c.mu.Unlock()
	}
	c.metrics.miss()
	var zero V
	return zero, false
}

// Set overwrites key and restarts its expiry clock. ttl <= 0 means the
// default TTL.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.store(key, value, ttl)
	c.broadcast(OpKey, key)
}

func (c *Cache[V]) store(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, expiresAt: time.Now().Add(ttl)}
	if _, inFlight := c.loading[key]; inFlight {
		c.loading[key] = true
	}
	c.mu.Unlock()
}

// Remove deletes key. Removing an absent key is a no-op.
func (c *Cache[V]) Remove(key string) {
	c.removeLocal(key)
	c.broadcast(OpKey, key)
}

func (c *Cache[V]) removeLocal(key string) {
	c.mu.Lock()
	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.metrics.evicted("removed", 1)
	}
	if _, inFlight := c.loading[key]; inFlight {
		c.loading[key] = true
	}
	c.mu.Unlock()
}

// RemovePrefix deletes every key starting with prefix, e.g. all listing
// pages under "users:page:". It returns the number of entries dropped.
func (c *Cache[V]) RemovePrefix(prefix string) int {
	n := c.removePrefixLocal(prefix)
	c.broadcast(OpPrefix, prefix)
	return n
}

func (c *Cache[V]) removePrefixLocal(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			n++
		}
	}
	for k := range c.loading {
		if strings.HasPrefix(k, prefix) {
			c.loading[k] = true
		}
	}
	if n > 0 {
		c.metrics.evicted("removed", n)
	}
	return n
}

// Loader produces the value for a missing key.
type Loader[V any] func(ctx context.Context) (V, error)

// GetOrSet returns the cached value for key or loads it. Concurrent callers
// for the same missing key share one loader invocation. A failed load is
// returned to every waiter and nothing is cached. The loader runs detached
// from the first caller's cancellation; a waiter whose ctx ends stops
// waiting with ctx.Err().
func (c *Cache[V]) GetOrSet(ctx context.Context, key string, ttl time.Duration, loader Loader[V]) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		// A flight that finished just before this one started may have
		// filled the key already.
		if v, ok := c.peek(key); ok {
			return v, nil
		}
		return c.load(loadCtx, key, ttl, loader)
	})

	var zero V
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (c *Cache[V]) peek(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if ok && !e.expired(time.Now()) {
		return e.value, true
	}
	var zero V
	return zero, false
}

func (c *Cache[V]) load(ctx context.Context, key string, ttl time.Duration, loader Loader[V]) (v V, err error) {
	c.mu.Lock()
	c.loading[key] = false
	c.mu.Unlock()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = &apperr.CacheError{Op: "load", Key: key, Err: fmt.Errorf("loader panicked: %v", r)}
		}
		c.mu.Lock()
		stale := c.loading[key]
		delete(c.loading, key)
		if err == nil && !stale {
			if ttl <= 0 {
				ttl = c.defaultTTL
			}
			c.entries[key] = entry[V]{value: v, expiresAt: time.Now().Add(ttl)}
		}
		c.mu.Unlock()
		c.metrics.loaded(time.Since(start), err)
	}()

	return loader(ctx)
}

// Sweep drops every expired entry and returns how many were dropped.
func (c *Cache[V]) Sweep() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			n++
		}
	}
	if n > 0 {
		c.metrics.evicted("expired", n)
	}
	return n
}

// Len counts stored entries, including expired ones not yet swept.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// RunJanitor sweeps every interval until ctx is done.
func (c *Cache[V]) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.logger.Debug("cache sweep", "expired", n)
			}
		}
	}
}

func (c *Cache[V]) broadcast(op, target string) {
	if c.invalidator == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := c.invalidator.Publish(ctx, Invalidation{Op: op, Target: target}); err != nil {
		cerr := &apperr.CacheError{Op: "publish", Key: target, Err: err}
		c.logger.Warn("cache invalidation not published", "error", cerr)
	}
}
