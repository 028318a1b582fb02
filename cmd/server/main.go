package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/phamhoa2416/ticket-booking/internal/audit"
	"github.com/phamhoa2416/ticket-booking/internal/cache"
	"github.com/phamhoa2416/ticket-booking/internal/config"
	"github.com/phamhoa2416/ticket-booking/internal/database"
	"github.com/phamhoa2416/ticket-booking/internal/handler"
	"github.com/phamhoa2416/ticket-booking/internal/middleware"
	"github.com/phamhoa2416/ticket-booking/internal/queue"
	"github.com/phamhoa2416/ticket-booking/internal/repository"
	"github.com/phamhoa2416/ticket-booking/internal/router"
	"github.com/phamhoa2416/ticket-booking/internal/service"
	"github.com/phamhoa2416/ticket-booking/internal/txn"
)

const metricsNamespace = "ticket_booking"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()
	store := repository.NewSQLStore(db, cfg.DB.Dialect)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Redis is optional; without it the cache stays process-local and rate
	// limiting falls back to in-memory buckets.
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = config.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, continuing without it", "addr", cfg.Redis.Addr, "error", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	cacheMetrics, err := cache.NewMetrics(metricsNamespace, reg)
	if err != nil {
		return err
	}
	cacheOpts := []cache.Option{
		cache.WithDefaultTTL(cfg.Cache.TTL),
		cache.WithMetrics(cacheMetrics),
		cache.WithLogger(logger),
	}
	var inv *cache.RedisInvalidator
	if rdb != nil {
		inv = cache.NewRedisInvalidator(rdb, cfg.Cache.InvalidationChannel, logger)
		cacheOpts = append(cacheOpts, cache.WithInvalidator(inv))
	}
	c := cache.New[any](cacheOpts...)
	go c.RunJanitor(ctx, cfg.Cache.SweepInterval)
	if inv != nil {
		go func() {
			if err := inv.Subscribe(ctx, c); err != nil {
				logger.Error("cache invalidation subscriber stopped", "error", err)
			}
		}()
	}

	txMetrics, err := txn.NewMetrics(metricsNamespace, reg)
	if err != nil {
		return err
	}
	tx := txn.NewManager(store,
		txn.WithRetryPolicy(cfg.Tx.MaxAttempts, cfg.Tx.BaseDelay),
		txn.WithLogger(logger),
		txn.WithMetrics(txMetrics),
		txn.WithTracer(otel.Tracer("github.com/phamhoa2416/ticket-booking/internal/txn")),
	)

	sinks := []audit.Sink{audit.LogSink{Logger: logger}}
	if cfg.RabbitMQURL != "" {
		amqpSink := audit.NewAMQPSink(cfg.RabbitMQURL, audit.Queue)
		defer amqpSink.Close()
		sinks = append(sinks, amqpSink)

		consumer := queue.NewAuditConsumer(cfg.RabbitMQURL, cfg.AuditLogPath, logger)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("audit consumer stopped", "error", err)
			}
		}()
	}

	deps := service.Deps{
		Tx:     tx,
		Cache:  c,
		Audit:  audit.NewRecorder(logger, sinks...),
		Logger: logger,
	}
	users := service.NewUserService(deps, cfg.BcryptCost)
	customers := service.NewCustomerService(deps)
	organizers := service.NewOrganizerService(deps)
	events := service.NewEventService(deps)
	tickets := service.NewTicketService(deps)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	limit := middleware.NewRateLimiter(cfg.RateLimit, rdb, logger)
	eventHandler := handler.NewEventHandler(events, tickets)

	router.RegisterRoutes(e, db, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	router.RegisterAuth(e, handler.NewAuthHandler(users, cfg.JWTSecret, time.Duration(cfg.AccessTTLMin)*time.Minute), limit)
	router.RegisterPublic(e, eventHandler)

	v1 := router.Protected(e, cfg.JWTSecret, limit)
	router.RegisterAccounts(v1, handler.NewAccountHandler(users, customers, organizers))
	router.RegisterEvents(v1, eventHandler)
	router.RegisterTickets(v1, handler.NewTicketHandler(tickets))

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info("listening", "addr", addr, "env", cfg.Env, "db", cfg.DB.Dialect)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return e.Shutdown(shutdownCtx)
}
