package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type slowJob struct {
	running  atomic.Int32
	overlaps atomic.Int32
	ticks    atomic.Int32
	delay    time.Duration
}

func (j *slowJob) Tick(ctx context.Context, now time.Time) error {
	if j.running.Add(1) > 1 {
		j.overlaps.Add(1)
	}
	defer j.running.Add(-1)

	j.ticks.Add(1)
	select {
	case <-time.After(j.delay):
	case <-ctx.Done():
	}
	return nil
}

func TestSchedulerRunsJobOnInterval(t *testing.T) {
	job := &slowJob{}
	s := New(5*time.Millisecond, job)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if job.ticks.Load() < 2 {
		t.Fatalf("expected at least 2 ticks, got %d", job.ticks.Load())
	}
}

func TestSchedulerNeverOverlapsSlowRuns(t *testing.T) {
	job := &slowJob{delay: 15 * time.Millisecond}
	s := New(5*time.Millisecond, job)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if job.overlaps.Load() != 0 {
		t.Fatalf("expected no overlapping runs, got %d", job.overlaps.Load())
	}
	if job.ticks.Load() == 0 {
		t.Fatal("expected the job to run at least once")
	}
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	job := &slowJob{}
	s := New(time.Millisecond, job)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
