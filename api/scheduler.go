/*
scheduler.go - Unattended job scheduling

PURPOSE:
  Periodically launches the three aggregation jobs in their natural
  order: daily summaries first, then the monthly roll-up, then report
  classification. Every stage is idempotent, so a tick that finds
  nothing new is a cheap no-op.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Stages run strictly in order within one tick; a failed stage does
    not stop the later ones (they operate on already-committed data)
  - Start/Stop are safe to call once each from the owning main

USAGE:
  scheduler := api.NewScheduler(launcher, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/attendance-engine/jobs"
)

// Scheduler drives unattended aggregation runs.
type Scheduler struct {
	Launcher      *jobs.Launcher
	Logger        *logrus.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewScheduler(launcher *jobs.Launcher, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		Launcher:      launcher,
		Logger:        logger,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("scheduler disabled, not starting")
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)
	go s.run()

	s.Logger.WithField("interval", s.CheckInterval.String()).Info("scheduler started")
}

// Stop stops the scheduler and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.Logger.Info("scheduler stopped")
	}
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	// Run immediately on start.
	s.runAll()

	for {
		select {
		case <-s.ticker.C:
			s.runAll()
		case <-s.stop:
			return
		}
	}
}

// runAll launches daily -> monthly -> report in order.
func (s *Scheduler) runAll() {
	ctx := context.Background()

	for _, name := range jobs.Names() {
		run, err := s.Launcher.Run(ctx, name)
		if err != nil {
			s.Logger.WithFields(logrus.Fields{
				"job":    name,
				"run_id": run.ID,
			}).WithError(err).Error("scheduled run failed")
			continue
		}
		if run.ItemsSkipped > 0 {
			s.Logger.WithFields(logrus.Fields{
				"job":     name,
				"run_id":  run.ID,
				"skipped": run.ItemsSkipped,
			}).Warn("scheduled run completed with skips")
		}
	}
}

// RunNow triggers an immediate pass (for admin/testing).
func (s *Scheduler) RunNow() {
	s.runAll()
}
