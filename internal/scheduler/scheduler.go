// Package scheduler drives the periodic weather fetch job.
package scheduler

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/wxagent/weather-agent/internal/ingest"
)

// Job is one runnable ingestion pass.
type Job interface {
	Run(ctx context.Context) ingest.Result
}

// Scheduler triggers one job run on a fixed interval. At most one run is in
// flight: a trigger that fires while a run is still executing is dropped, not
// queued. Fetch duration is expected to be much shorter than the interval, so
// dropped triggers are the rare case.
type Scheduler struct {
	scheduler *gocron.Scheduler
	job       Job
	interval  time.Duration
	busy      atomic.Bool
}

// New creates a Scheduler that runs job every interval.
func New(interval time.Duration, job Job) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		job:       job,
		interval:  interval,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// The given context bounds every run: once it is cancelled, an in-flight run
// finishes its current city and stops.
func (s *Scheduler) Start(ctx context.Context) error {
	// The busy flag enforces the skip. gocron's own SingletonMode queues
	// elapsed triggers and drains the backlog after a long run, which is
	// the opposite of what we want here.
	_, err := s.scheduler.Every(s.interval).Do(func() {
		if !s.busy.CompareAndSwap(false, true) {
			log.Println("scheduler: previous run still in progress, skipping trigger")
			return
		}
		defer s.busy.Store(false)

		log.Println("scheduler: running weather fetch job")
		res := s.job.Run(ctx)
		log.Printf("scheduler: fetch job finished, success=%d errors=%d", res.Success, res.Errors)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	log.Printf("scheduler: started, interval %s", s.interval)
	return nil
}

// Stop cancels the timer deterministically; no trigger fires afterwards.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
		log.Println("scheduler: stopped")
	}
}
