package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/meetsmatch/matchqueue/internal/config"
	apperrors "github.com/meetsmatch/matchqueue/internal/errors"
	"github.com/meetsmatch/matchqueue/internal/jobs"
	"github.com/meetsmatch/matchqueue/internal/monitoring"
	"github.com/meetsmatch/matchqueue/internal/services"
	"github.com/meetsmatch/matchqueue/internal/telemetry"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the scheduler and task worker for queue expiry and stats refresh",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runWorker(ctx)
	},
}

func runWorker(ctx context.Context) error {
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.close()
	cfg := rt.cfg

	if err := cfg.RequireRedis("worker"); err != nil {
		return err
	}
	if cfg.Matching.StorageDriver != config.StorageDriverPostgres {
		return apperrors.NewConfigurationError("matching.storage_driver", "worker requires the postgres storage driver")
	}

	st, err := rt.openStores(ctx)
	if err != nil {
		return err
	}
	if err := rt.observeStorage(st); err != nil {
		return err
	}

	instrumentation, err := monitoring.NewMatchingInstrumentation(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("failed to create matching instrumentation: %w", err)
	}

	redisOpt := jobs.RedisOpt(cfg.Redis)
	worker := jobs.NewWorker(redisOpt, cfg.Worker.Concurrency, cfg.Worker.Queues)
	queueService := services.NewQueueService(st.queue, cfg.Matching.StoreTimeout)
	worker.RegisterHandler(jobs.TypeExpireStaleQueue,
		jobs.NewExpireStaleHandler(queueService, instrumentation, cfg.Worker.QueueStaleAfter))
	worker.RegisterHandler(jobs.TypeRefreshStats, jobs.NewRefreshStatsHandler(st.statsCache))

	scheduler, err := jobs.NewScheduler(redisOpt, jobs.Schedules{
		ExpireStale:  cfg.Worker.ExpireSchedule,
		RefreshStats: cfg.Worker.StatsSchedule,
	})
	if err != nil {
		return apperrors.NewConfigurationError("worker", fmt.Sprintf("invalid schedule: %v", err))
	}

	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation":   "worker",
		"service":     "worker",
		"concurrency": cfg.Worker.Concurrency,
		"queues":      cfg.Worker.Queues,
		"scheduled":   scheduler.Registered(),
	})

	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	logger.Info("Scheduler started")
	if err := worker.Start(); err != nil {
		scheduler.Shutdown()
		return fmt.Errorf("failed to start worker: %w", err)
	}
	logger.Info("Worker started")

	<-ctx.Done()
	logger.Info("Shutting down worker and scheduler")
	scheduler.Shutdown()
	worker.Shutdown()
	logger.Info("Worker exited")
	return nil
}
