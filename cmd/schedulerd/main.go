// Command schedulerd runs the job scheduling engine as a daemon: it
// migrates the store, registers the four reference handlers, ticks the
// runner on an interval, and serves the admin API.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/carebridge/scheduler/api"
	"github.com/carebridge/scheduler/handlers"
	"github.com/carebridge/scheduler/job"
	"github.com/carebridge/scheduler/middleware"
	"github.com/carebridge/scheduler/runner"
	"github.com/carebridge/scheduler/store"
	"github.com/carebridge/scheduler/store/memory"
	"github.com/carebridge/scheduler/store/postgres"
	"github.com/carebridge/scheduler/store/redis"
)

func main() {
	cfg := loadConfig()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("open store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		logger.Error("migrate store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	registry := job.NewRegistry()
	if err := registerHandlers(registry, st, logger); err != nil {
		logger.Error("register handlers", slog.String("error", err.Error()))
		os.Exit(1)
	}

	opts := []runner.Option{
		runner.WithLogger(logger),
		runner.WithBatchSize(cfg.BatchSize),
		runner.WithLockTTL(cfg.LockTTL),
		runner.WithMiddleware(middleware.Logging(logger)),
		runner.WithMiddleware(middleware.Tracing()),
		runner.WithMiddleware(middleware.Metrics()),
	}
	if cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		opts = append(opts, runner.WithLockStore(redis.NewLockStore(client)))
		logger.Info("lock arbitration on redis", slog.String("addr", cfg.RedisAddr))
	}
	run := runner.New(st, registry, opts...)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewServer(st, run, api.WithLogger(logger)).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("admin api listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("serve admin api", slog.String("error", err.Error()))
			stop()
		}
	}()

	go tickLoop(ctx, run, cfg.TickInterval, logger)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown admin api", slog.String("error", err.Error()))
	}
}

// openStore selects the backend: Postgres when DATABASE_URL is set, the
// in-memory store otherwise.
func openStore(ctx context.Context, cfg config, logger *slog.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("no DATABASE_URL set, using in-memory store")
		return memory.New(), nil
	}
	return postgres.New(ctx, cfg.DatabaseURL, postgres.WithLogger(logger))
}

// registerHandlers wires the four reference handlers into the registry.
// The care collaborators default to the development stand-ins.
func registerHandlers(registry *job.Registry, st store.Store, logger *slog.Logger) error {
	tasks := newDevTaskStore()
	hs := []job.Handler{
		handlers.NewRecurringTasks(devDirectory{}, tasks, handlers.WithLogger(logger)),
		handlers.NewReminders(tasks, newDevReminderLog(), handlers.WithLogger(logger)),
		handlers.NewAggregator(tasks, devStaffing{}, st, handlers.WithLogger(logger)),
		handlers.NewReports(logReportSink{logger: logger}, handlers.WithLogger(logger)),
	}
	for _, h := range hs {
		if err := registry.Register(h); err != nil {
			return err
		}
	}
	return nil
}

// tickLoop invokes the runner once per interval until ctx is cancelled.
func tickLoop(ctx context.Context, run *runner.Runner, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := run.RunScheduledJobs(ctx); err != nil {
				logger.Error("runner tick", slog.String("error", err.Error()))
			}
		}
	}
}
