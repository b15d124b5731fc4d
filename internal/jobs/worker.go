package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/meetsmatch/matchqueue/internal/cache"
	"github.com/meetsmatch/matchqueue/internal/sentry"
	"github.com/meetsmatch/matchqueue/internal/telemetry"
)

// RedisOpt converts the cache settings into asynq connection options.
func RedisOpt(cfg cache.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}
}

// QueuePriorities weights queues by position: the first listed is served most.
func QueuePriorities(queues []string) map[string]int {
	if len(queues) == 0 {
		return map[string]int{"default": 1}
	}
	priorities := make(map[string]int, len(queues))
	for i, q := range queues {
		if _, seen := priorities[q]; !seen {
			priorities[q] = len(queues) - i
		}
	}
	return priorities
}

// Worker processes async tasks.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewWorker creates a new task worker.
func NewWorker(redisOpt asynq.RedisConnOpt, concurrency int, queues []string) *Worker {
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:  concurrency,
		Queues:       QueuePriorities(queues),
		Logger:       newTaskLogger(),
		ErrorHandler: asynq.ErrorHandlerFunc(reportTaskError),
	})

	return &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
	}
}

// RegisterHandler registers a task handler for a task type.
func (w *Worker) RegisterHandler(taskType string, handler asynq.Handler) {
	w.mux.Handle(taskType, handler)
	telemetry.GetContextualLogger(context.Background()).WithFields(map[string]interface{}{
		"operation": "register_handler",
		"service":   "worker",
		"task_type": taskType,
	}).Info("Registered task handler")
}

// Start begins processing tasks in the background.
func (w *Worker) Start() error {
	return w.server.Start(w.mux)
}

// Shutdown gracefully stops the worker.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func reportTaskError(ctx context.Context, task *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": "process_task",
		"service":   "worker",
		"task_type": task.Type(),
		"retried":   retried,
		"max_retry": maxRetry,
	}).WithError(err).Error("Task failed")

	if retried >= maxRetry {
		sentry.CaptureErrorWithContext(ctx, err,
			map[string]string{"task_type": task.Type()},
			map[string]interface{}{"retried": retried})
	}
}

// taskLogger routes asynq's internal logging through the service logger.
type taskLogger struct {
	logger *telemetry.ContextualLogger
}

func newTaskLogger() *taskLogger {
	return &taskLogger{
		logger: telemetry.GetContextualLogger(context.Background()).WithField("component", "asynq"),
	}
}

func (l *taskLogger) Debug(args ...interface{}) { l.logger.Debug(args...) }
func (l *taskLogger) Info(args ...interface{})  { l.logger.Info(args...) }
func (l *taskLogger) Warn(args ...interface{})  { l.logger.Warn(args...) }
func (l *taskLogger) Error(args ...interface{}) { l.logger.Error(args...) }
func (l *taskLogger) Fatal(args ...interface{}) {
	l.logger.Error(args...)
	panic(fmt.Sprint(args...))
}

var _ asynq.Logger = (*taskLogger)(nil)
