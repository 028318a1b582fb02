// Package config loads application configuration from environment
// variables. A .env file in the working directory is read first when present;
// variables already set in the environment win.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/phamhoa2416/ticket-booking/internal/database"
)

// Config holds all runtime configuration values.
type Config struct {
	Env  string // application environment (dev/test/prod)
	Port string // HTTP port to listen on

	DB database.Options

	JWTSecret    string
	AccessTTLMin int
	BcryptCost   int

	Cache     CacheConfig
	Tx        TxConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig

	RabbitMQURL  string // empty disables the AMQP audit sink
	AuditLogPath string
}

// TxConfig is the default retry policy of the transaction manager.
type TxConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Load reads the configuration. Missing required variables are fatal.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:          envStr("APP_ENV", "dev"),
		Port:         must("APP_PORT"),
		DB:           loadDB(),
		JWTSecret:    must("JWT_SECRET"),
		AccessTTLMin: envInt("ACCESS_TOKEN_TTL_MIN", 60),
		BcryptCost:   envInt("BCRYPT_COST", 10),
		Cache:        LoadCacheConfig(),
		Tx: TxConfig{
			MaxAttempts: envInt("TX_MAX_ATTEMPTS", 3),
			BaseDelay:   envDur("TX_BASE_DELAY", 100*time.Millisecond),
		},
		Redis:        LoadRedisConfig(),
		RateLimit:    LoadRateLimitConfig(),
		RabbitMQURL:  firstEnv("RABBITMQ_URL", "AMQP_URL"),
		AuditLogPath: envStr("AUDIT_LOG_PATH", "logs/audit.log"),
	}
}

func loadDB() database.Options {
	dialect, err := database.ParseDialect(envStr("DB_DRIVER", "mysql"))
	if err != nil {
		log.Fatalf("invalid DB_DRIVER: %v", err)
	}
	o := database.Options{
		Dialect:         dialect,
		MaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 25),
		ConnMaxLifetime: envDur("DB_CONN_MAX_LIFETIME", 30*time.Minute),
	}
	if dialect == database.SQLite {
		o.Path = envStr("DB_PATH", "ticket-booking.db")
		return o
	}
	o.User = must("DB_USER")
	o.Password = os.Getenv("DB_PASS") // empty allowed
	o.Host = must("DB_HOST")
	o.Port = must("DB_PORT")
	o.Name = must("DB_NAME")
	return o
}

// must retrieves the value of a required environment variable and exits
// when it is unset or empty.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envFloat(k string, d float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
