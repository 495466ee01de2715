// Command server runs the RezScan check-in service: scan ingestion, the
// presence dashboard API, and the audit worker, all over one Postgres
// event store.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"rezscan/internal/audit"
	"rezscan/internal/location"
	"rezscan/internal/platform/config"
	"rezscan/internal/platform/httpserver"
	"rezscan/internal/platform/logger"
	platformmetrics "rezscan/internal/platform/metrics"
	"rezscan/internal/platform/postgres"
	"rezscan/internal/platform/redis"
	presencehandler "rezscan/internal/presence/handler"
	presenceservice "rezscan/internal/presence/service"
	"rezscan/internal/ratelimit"
	"rezscan/internal/resident"
	scanhandler "rezscan/internal/scan/handler"
	scanmetrics "rezscan/internal/scan/metrics"
	scanservice "rezscan/internal/scan/service"
	scanstore "rezscan/internal/scan/store"
	httptransport "rezscan/internal/transport/http"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres connection failed", "error", err.Error())
		os.Exit(1)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		log.Error("schema setup failed", "error", err.Error())
		os.Exit(1)
	}

	// Stores: Postgres when configured, in-memory otherwise (dev only; the
	// in-memory stores lose everything on restart).
	var (
		events     scanstore.EventStore
		locations  location.Store
		residents  resident.Store
		auditStore audit.Store
	)
	if db != nil {
		events = scanstore.NewPostgres(db)
		locations = location.NewPostgres(db)
		residents = resident.NewPostgres(db)
		auditStore = audit.NewPostgres(db)
	} else {
		log.Warn("no database configured, using in-memory stores")
		events = scanstore.NewInMemory()
		locations = location.NewInMemory()
		residents = resident.NewInMemory()
		auditStore = audit.NewInMemory()
	}

	auditor := audit.NewPublisher(cfg.AuditBuffer, log)
	worker := audit.NewWorker(auditStore, auditor.Inbox(), log)

	engine := scanservice.NewEngine(events, locations, residents,
		scanservice.WithCooldown(cfg.ScanCooldown),
		scanservice.WithPolicy(cfg.UnknownResidentPolicy),
		scanservice.WithMetrics(scanmetrics.New()),
		scanservice.WithLogger(log),
	)
	projector := presenceservice.NewProjector(events, residents)

	var window ratelimit.Window = ratelimit.NewMemoryWindow()
	redisClient, err := redis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		window = ratelimit.NewRedisWindow(redisClient.Client)
	}
	limiter := ratelimit.New(window, cfg.RateLimitPerMinute, log)

	router := httptransport.NewRouter(log, platformmetrics.New(),
		scanhandler.New(engine, events, residents, log, auditor, limiter.Middleware()),
		presencehandler.New(projector, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting rezscan", "addr", cfg.Addr, "policy", string(cfg.UnknownResidentPolicy))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}
