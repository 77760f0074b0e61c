package spool

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bencyrus/safeupload/shared/logger"
)

// Janitor periodically sweeps stale spool files on a cron schedule.
type Janitor struct {
	spool  *Spool
	maxAge time.Duration
	cron   *cron.Cron
}

// NewJanitor registers the sweep under schedule, which accepts standard
// five-field expressions and descriptors such as "@every 10m".
func NewJanitor(s *Spool, maxAge time.Duration, schedule string) (*Janitor, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	j := &Janitor{
		spool:  s,
		maxAge: maxAge,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
	}
	if _, err := j.cron.AddFunc(schedule, j.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid spool sweep schedule %q: %w", schedule, err)
	}
	return j, nil
}

// RunOnce sweeps immediately.
func (j *Janitor) RunOnce() {
	ctx := context.Background()
	removed, err := j.spool.Sweep(j.maxAge, time.Now())
	if err != nil {
		logger.Error(ctx, "spool sweep failed", err, logger.Fields{"dir": j.spool.Dir()})
	}
	if removed > 0 {
		logger.Info(ctx, "removed stale spool files", logger.Fields{
			"dir":     j.spool.Dir(),
			"removed": removed,
		})
	}
}

func (j *Janitor) Start() { j.cron.Start() }

// Stop halts the schedule and blocks until a running sweep finishes or ctx
// ends.
func (j *Janitor) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
