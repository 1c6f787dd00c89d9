package service

import (
	"context"
	"fmt"
	"time"

	"controlling_tanks/internal/logger"

	"github.com/robfig/cron/v3"
)

const snapshotTimeout = 10 * time.Second

type statsSnapshotter interface {
	SnapshotStats(ctx context.Context) error
}

// Jobs runs the periodic housekeeping tasks.
type Jobs struct {
	cron *cron.Cron
	log  *logger.Logger
}

// NewJobs schedules the pump stats snapshot on spec, a standard five-field
// cron expression or a descriptor such as "@every 1m".
func NewJobs(spec string, stats statsSnapshotter, log *logger.Logger) (*Jobs, error) {
	if log == nil {
		log = logger.NewNop()
	}
	c := cron.New(cron.WithLocation(time.UTC))
	j := &Jobs{cron: c, log: log}

	if _, err := c.AddFunc(spec, func() { j.snapshot(stats) }); err != nil {
		return nil, fmt.Errorf("schedule stats snapshot %q: %w", spec, err)
	}
	return j, nil
}

func (j *Jobs) snapshot(stats statsSnapshotter) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	if err := stats.SnapshotStats(ctx); err != nil {
		j.log.Errorw("stats_snapshot_failed", "err", err)
		return
	}
	j.log.Debugw("stats_snapshot_saved")
}

func (j *Jobs) Start() { j.cron.Start() }

// Stop waits for a running job to finish or ctx to expire.
func (j *Jobs) Stop(ctx context.Context) {
	select {
	case <-j.cron.Stop().Done():
	case <-ctx.Done():
	}
}
