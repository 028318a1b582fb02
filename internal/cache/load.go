package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/phamhoa2416/ticket-booking/internal/apperr"
)

// Load is GetOrSet for a heterogeneous cache. A cached value of the wrong
// type is reported as a CacheError rather than a panic.
func Load[T any](ctx context.Context, c *Cache[any], key string, ttl time.Duration, loader func(context.Context) (T, error)) (T, error) {
	v, err := c.GetOrSet(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return loader(ctx)
	})
	var zero T
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, &apperr.CacheError{Op: "load", Key: key, Err: fmt.Errorf("cached value has type %T", v)}
	}
	return t, nil
}

// Lookup is Get for a heterogeneous cache; a mistyped entry counts as absent.
func Lookup[T any](c *Cache[any], key string) (T, bool) {
	v, ok := c.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
