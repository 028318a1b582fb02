package config

import "time"

// RateLimitConfig is a token bucket per actor (or client IP for anonymous
// requests) applied to mutating endpoints.
type RateLimitConfig struct {
	Enabled bool
	Rate    float64 // tokens per second
	Burst   int
	// TTL is how long an idle bucket is kept before it is forgotten.
	TTL time.Duration
}

func LoadRateLimitConfig() RateLimitConfig {
	c := RateLimitConfig{
		Enabled: envBool("RATE_LIMIT_ENABLED", true),
		Rate:    envFloat("RATE_LIMIT_RATE", 1),
		Burst:   envInt("RATE_LIMIT_BURST", 60),
		TTL:     envDur("RATE_LIMIT_TTL", 10*time.Minute),
	}
	if every := envDur("RATE_LIMIT_REFILL_EVERY", 0); every > 0 {
		c.Rate = float64(time.Second) / float64(every)
	}
	if c.Burst < 1 {
		c.Burst = 1
	}
	if c.Rate <= 0 {
		c.Rate = 1
	}
	if minTTL := 5 * time.Duration(float64(time.Second)/c.Rate); c.TTL < minTTL {
		c.TTL = minTTL
	}
	return c
}
