package usecase

import (
	"context"
	"time"

	"ArticleDesk/internal/ports"
)

// Scheduler wires the interval driver with the syncer.
type Scheduler struct {
	driver ports.Scheduler
	syncer *Syncer
}

// NewScheduler returns a helper to start/stop recurring syncs.
func NewScheduler(driver ports.Scheduler, syncer *Syncer) *Scheduler {
	return &Scheduler{driver: driver, syncer: syncer}
}

// Start registers a passive sync of every connector with the driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.syncer == nil {
		return nil
	}

	job := func(time.Time) {
		_ = s.syncer.SyncAll(ctx)
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
