package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"newsdash/internal/ports"
)

// CronScheduler fires the registered job on a standard 5-field cron spec.
type CronScheduler struct {
	spec string
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler in the given location.
func NewCronScheduler(spec string, loc *time.Location) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &CronScheduler{
		spec: spec,
		cron: cron.New(cron.WithLocation(loc)),
	}
}

// Start registers the job and begins the cron loop. Calling Start twice
// without Stop is a no-op for the second call.
func (c *CronScheduler) Start(job func()) error {
	if job == nil {
		return nil
	}
	if len(c.cron.Entries()) > 0 {
		return nil
	}

	if _, err := c.cron.AddFunc(c.spec, job); err != nil {
		return fmt.Errorf("register cron job %q: %w", c.spec, err)
	}
	c.cron.Start()

	return nil
}

// Stop halts the cron loop, waiting for a running job until ctx expires.
func (c *CronScheduler) Stop(ctx context.Context) error {
	done := c.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
