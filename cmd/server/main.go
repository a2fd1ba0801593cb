// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal services; nothing here should grow beyond plumbing.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"citeline/internal/audit"
	"citeline/internal/auth/token"
	"citeline/internal/batch"
	batchhandler "citeline/internal/batch/handler"
	"citeline/internal/notify"
	"citeline/internal/notify/ws"
	"citeline/internal/platform/config"
	"citeline/internal/platform/httpserver"
	"citeline/internal/platform/kafka"
	"citeline/internal/platform/logger"
	"citeline/internal/platform/metrics"
	"citeline/internal/platform/redis"
	"citeline/internal/points/ledger"
	pointstore "citeline/internal/points/store"
	"citeline/internal/submission"
	submissionhandler "citeline/internal/submission/handler"
	submissionstore "citeline/internal/submission/store"
	httptransport "citeline/internal/transport/http"
	"citeline/internal/verification"
	verificationhandler "citeline/internal/verification/handler"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: Postgres when a DSN is configured, in-memory otherwise.
	var (
		submissions submissionstore.Store = submissionstore.NewInMemory()
		points      pointstore.Store      = pointstore.NewInMemory()
		auditStore  audit.Store           = audit.NewInMemory()
		db          *sql.DB
	)
	checks := map[string]httptransport.HealthChecker{}
	if cfg.PostgresDSN != "" {
		var err error
		db, err = sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		for _, schema := range []string{submissionstore.Schema, pointstore.Schema, audit.Schema} {
			if _, err := db.ExecContext(ctx, schema); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
		}
		submissions = submissionstore.NewPostgres(db)
		points = pointstore.NewPostgres(db)
		auditStore = audit.NewPostgres(db)
		checks["postgres"] = pingChecker{db}
		log.Info("using postgres storage")
	} else {
		log.Warn("no POSTGRES_DSN configured, using in-memory storage")
	}

	pointLedger, err := ledger.New(points, cfg.Points, cfg.Badges,
		ledger.WithLogger(log), ledger.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("build ledger: %w", err)
	}

	broadcaster := notify.NewBroadcaster(notify.WithLogger(log), notify.WithMetrics(m))

	// Publisher chain: local fan-out, optionally extended across instances
	// via Redis and mirrored to Kafka.
	var publisher notify.Publisher = broadcaster
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		bridge := notify.NewRedisBridge(redisClient, broadcaster, notify.WithBridgeLogger(log))
		go func() {
			if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("redis bridge stopped", "error", err)
			}
		}()
		publisher = bridge
		checks["redis"] = redisClient
		log.Info("redis event bridge enabled")
	}
	producer, err := kafka.NewProducer(cfg.Kafka, kafka.WithLogger(log))
	if err != nil {
		return fmt.Errorf("connect kafka: %w", err)
	}
	if producer != nil {
		publisher = notify.Fanout{publisher, producer}
		log.Info("kafka event mirror enabled", "topic", cfg.Kafka.Topic)
	}

	recorder := audit.NewRecorder(audit.WithRecorderLogger(log))
	auditWorker := audit.NewWorker(auditStore, recorder.Inbox(), audit.WithWorkerLogger(log))
	go func() {
		if err := auditWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
	}()
	publisher = notify.Fanout{publisher, recorder}

	verifyService, err := verification.NewService(submissions, pointLedger, publisher,
		verification.WithLogger(log), verification.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("build verification service: %w", err)
	}
	submissionService, err := submission.NewService(submissions, pointLedger, publisher,
		submission.WithLogger(log), submission.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("build submission service: %w", err)
	}
	coordinator, err := batch.NewCoordinator(submissions, verifyService, submissionService,
		batch.WithLogger(log), batch.WithMetrics(m), batch.WithParallelism(cfg.BatchParallelism))
	if err != nil {
		return fmt.Errorf("build batch coordinator: %w", err)
	}

	validator := token.NewManager(cfg.JWTSigningKey, 24*time.Hour)

	router := httptransport.New(httptransport.Deps{
		Logger:      log,
		Validator:   validator,
		Submissions: submissionhandler.New(submissionService, log),
		Verify:      verificationhandler.New(verifyService, log),
		Batch:       batchhandler.New(coordinator, log),
		Live:        ws.NewHandler(broadcaster, ws.WithLogger(log)),
		Checks:      checks,
	})

	srv := httpserver.New(cfg.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting citeline", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	producer.Close(shutdownCtx)
	return nil
}

// pingChecker adapts *sql.DB to the health check interface.
type pingChecker struct{ db *sql.DB }

func (p pingChecker) Health(ctx context.Context) error { return p.db.PingContext(ctx) }
