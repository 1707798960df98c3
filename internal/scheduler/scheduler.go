package scheduler

import (
	"context"
	"log"
	"time"
)

// Job is one unit of periodic work driven by the clock.
type Job interface {
	Tick(ctx context.Context, now time.Time) error
}

// Scheduler fires a job on a fixed interval. Runs never overlap: if a run
// takes longer than the interval, the tick that fired meanwhile is dropped and
// the next run waits for a fresh tick.
type Scheduler struct {
	interval time.Duration
	job      Job
}

func New(interval time.Duration, job Job) *Scheduler {
	return &Scheduler{interval: interval, job: job}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := s.job.Tick(ctx, now.UTC()); err != nil {
				log.Printf("scheduler tick: %v", err)
			}
			// Drop a tick that queued up while the job ran.
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}
