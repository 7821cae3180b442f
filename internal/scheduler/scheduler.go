package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// PeriodicTask is one named retention cadence. The cadence is data, not
// an opaque cron string buried in a library call: tests invoke Run
// directly and inspect LastRun without waiting on wall-clock time.
type PeriodicTask struct {
	Name    string
	Spec    string // cron expression driving the wall-clock cadence
	Run     func(ctx context.Context)
	lastRun time.Time
	running bool
	mu      sync.Mutex
}

// TryRun executes the task unless a previous tick is still running.
// Overlapping ticks of the same task are skipped, not queued.
func (t *PeriodicTask) TryRun(ctx context.Context) bool {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return false
	}
	t.running = true
	t.lastRun = time.Now()
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
	}()
	t.Run(ctx)
	return true
}

// LastRun reports when the task last started.
func (t *PeriodicTask) LastRun() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastRun
}

// Scheduler drives the periodic tasks off wall-clock time. Different
// tasks run in parallel; repeated ticks of one task are mutually
// exclusive via TryRun.
type Scheduler struct {
	cron  *cron.Cron
	tasks []*PeriodicTask
	log   *logrus.Logger
}

// New creates a scheduler over the given tasks.
func New(log *logrus.Logger, tasks ...*PeriodicTask) *Scheduler {
	return &Scheduler{cron: cron.New(), tasks: tasks, log: log}
}

// Tasks exposes the registered tasks for inspection.
func (s *Scheduler) Tasks() []*PeriodicTask { return s.tasks }

// Start registers every task with the cron driver and starts ticking.
func (s *Scheduler) Start() error {
	for _, task := range s.tasks {
		task := task
		_, err := s.cron.AddFunc(task.Spec, func() {
			if !task.TryRun(context.Background()) {
				s.log.WithField("task", task.Name).Warn("Skipping tick: previous run still in progress")
			}
		})
		if err != nil {
			return err
		}
		s.log.WithFields(logrus.Fields{
			"task": task.Name,
			"spec": task.Spec,
		}).Info("Scheduled periodic task")
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron driver and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
