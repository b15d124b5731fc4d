package jobs

import (
	"context"

	"github.com/hibiken/asynq"

	"github.com/meetsmatch/matchqueue/internal/telemetry"
)

// Schedules is the cron spec of each periodic task; an empty spec disables
// that task.
type Schedules struct {
	ExpireStale  string
	RefreshStats string
}

// Scheduler manages periodic job scheduling using asynq.
type Scheduler struct {
	scheduler *asynq.Scheduler
	entries   map[string]string
}

// NewScheduler creates a job scheduler with the periodic tasks registered.
func NewScheduler(redisOpt asynq.RedisConnOpt, schedules Schedules) (*Scheduler, error) {
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Logger: newTaskLogger()})
	s := &Scheduler{scheduler: scheduler, entries: make(map[string]string)}

	if schedules.ExpireStale != "" {
		task, err := NewExpireStaleTask(0)
		if err != nil {
			return nil, err
		}
		if err := s.register(schedules.ExpireStale, task); err != nil {
			return nil, err
		}
	}
	if schedules.RefreshStats != "" {
		if err := s.register(schedules.RefreshStats, NewRefreshStatsTask()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) register(cronspec string, task *asynq.Task) error {
	entryID, err := s.scheduler.Register(cronspec, task)
	if err != nil {
		return err
	}
	s.entries[task.Type()] = entryID
	telemetry.GetContextualLogger(context.Background()).WithFields(map[string]interface{}{
		"operation": "register_periodic_task",
		"service":   "scheduler",
		"task_type": task.Type(),
		"schedule":  cronspec,
	}).Info("Registered periodic task")
	return nil
}

// Registered lists the task types with a schedule.
func (s *Scheduler) Registered() []string {
	types := make([]string, 0, len(s.entries))
	for t := range s.entries {
		types = append(types, t)
	}
	return types
}

// Start begins enqueuing periodic tasks in the background.
func (s *Scheduler) Start() error {
	return s.scheduler.Start()
}

// Shutdown gracefully stops the scheduler.
func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
