package scheduler

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestPeriodicTaskRunsDirectly(t *testing.T) {
	ran := 0
	task := &PeriodicTask{
		Name: "daily_cleanup",
		Spec: "0 3 * * *",
		Run:  func(ctx context.Context) { ran++ },
	}

	assert.True(t, task.LastRun().IsZero())
	assert.True(t, task.TryRun(context.Background()))
	assert.Equal(t, 1, ran)
	assert.False(t, task.LastRun().IsZero())
}

func TestPeriodicTaskSkipsOverlappingTicks(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	task := &PeriodicTask{
		Name: "weekly_anonymize_dedupe",
		Spec: "0 4 * * 0",
		Run: func(ctx context.Context) {
			started <- struct{}{}
			<-release
		},
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var first bool
	go func() {
		defer wg.Done()
		first = task.TryRun(context.Background())
	}()

	<-started
	// A second tick while the first is still running must be skipped.
	assert.False(t, task.TryRun(context.Background()))

	close(release)
	wg.Wait()
	assert.True(t, first)

	// Once idle the task accepts the next tick; release is closed so
	// this run returns immediately.
	assert.True(t, task.TryRun(context.Background()))
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := New(testLogger(), &PeriodicTask{
		Name: "broken",
		Spec: "not-a-spec",
		Run:  func(ctx context.Context) {},
	})
	assert.Error(t, s.Start())
}

func TestSchedulerExposesTasks(t *testing.T) {
	daily := &PeriodicTask{Name: "daily_cleanup", Spec: "0 3 * * *", Run: func(ctx context.Context) {}}
	monthly := &PeriodicTask{Name: "monthly_archive_report", Spec: "0 5 1 * *", Run: func(ctx context.Context) {}}
	s := New(testLogger(), daily, monthly)

	tasks := s.Tasks()
	assert.Len(t, tasks, 2)
	assert.Equal(t, "daily_cleanup", tasks[0].Name)
	assert.Equal(t, "0 5 1 * *", tasks[1].Spec)
}
