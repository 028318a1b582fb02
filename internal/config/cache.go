package config

import "time"

// CacheConfig controls the in-process entity cache.
type CacheConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
	// InvalidationChannel is the Redis pub/sub channel used to evict keys on
	// peer instances. It is only used when Redis is enabled.
	InvalidationChannel string
}

func LoadCacheConfig() CacheConfig {
	c := CacheConfig{
		TTL:                 envDur("CACHE_TTL", 30*time.Minute),
		SweepInterval:       envDur("CACHE_SWEEP_INTERVAL", time.Minute),
		InvalidationChannel: envStr("CACHE_INVALIDATION_CHANNEL", "ticket-booking:cache:invalidate"),
	}
	if c.TTL <= 0 {
		c.TTL = 30 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	return c
}
