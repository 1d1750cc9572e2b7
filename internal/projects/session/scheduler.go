package session

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler periodically sweeps idle sessions.
type Scheduler struct {
	cron *cron.Cron
}

// StartSweeper runs registry.Sweep(maxIdle) on the six-field cron spec.
func StartSweeper(registry *Registry, spec string, maxIdle time.Duration) (*Scheduler, error) {
	c := cron.New(cron.WithSeconds())

	_, err := c.AddFunc(spec, func() {
		registry.Sweep(maxIdle)
	})
	if err != nil {
		return nil, fmt.Errorf("schedule session sweep %q: %w", spec, err)
	}

	registry.log.Info().Str("spec", spec).Dur("max_idle", maxIdle).Msg("session sweeper started")
	c.Start()
	return &Scheduler{cron: c}, nil
}

// Stop halts the sweeper and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
