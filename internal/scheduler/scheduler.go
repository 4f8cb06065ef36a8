package scheduler

import (
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/smog-density-map/internal/smog"
)

// Scheduler periodically sweeps idle presenter sessions.
type Scheduler struct {
	scheduler *gocron.Scheduler
	store     smog.SessionStore
	interval  time.Duration
}

// New creates a new Scheduler.
func New(store smog.SessionStore, interval time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		store:     store,
		interval:  interval,
	}
}

// Start schedules the sweep job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	interval := s.interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	_, err := s.scheduler.Every(interval).Do(s.sweep)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) sweep() {
	if removed := s.store.Sweep(); removed > 0 {
		log.Printf("scheduler: swept %d idle sessions, %d remain", removed, s.store.Len())
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
