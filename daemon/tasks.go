package daemon

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"gitlab.com/gfxd/gpu-mode-service/internal/background_tasks"
	"gitlab.com/gfxd/gpu-mode-service/models"
)

// PowerReader reads the dGPU power state. *gfx.Controller implements it.
type PowerReader interface {
	PowerStatus() (models.PowerState, error)
}

// PowerObserver receives power samples. *telemetry.Metrics implements it.
type PowerObserver interface {
	ObservePower(state models.PowerState)
}

// HistoryPruner removes old transitions. repositories.TransitionRepository implements it.
type HistoryPruner interface {
	DeleteBefore(ctx context.Context, t time.Time) (int64, error)
}

// PruneObserver is told how many transitions were pruned.
type PruneObserver interface {
	ObservePruned(n int64)
}

// NewPowerSampleTask samples the dGPU power state every interval and whenever onChange
// fires.
func NewPowerSampleTask(power PowerReader, obs PowerObserver, interval time.Duration, onChange *background_tasks.EventTrigger) *background_tasks.Task {
	triggers := []background_tasks.Trigger{&background_tasks.PeriodicTrigger{Interval: interval}}
	if onChange != nil {
		triggers = append(triggers, onChange)
	}

	return &background_tasks.Task{
		Name:        "power-sample",
		Description: "Sample the dedicated GPU runtime power state",
		Triggers:    triggers,
		Function: func(ctx context.Context) error {
			state, err := power.PowerStatus()
			obs.ObservePower(state)
			return err
		},
		Priority: 1,
	}
}

// NewHistoryPruneTask deletes finished transitions older than retention on the cron
// schedule. A non-positive retention keeps everything.
func NewHistoryPruneTask(history HistoryPruner, obs PruneObserver, clk clock.Clock, cronExpr string, retention time.Duration) *background_tasks.Task {
	return &background_tasks.Task{
		Name:        "history-prune",
		Description: "Delete old mode transition records",
		Triggers:    []background_tasks.Trigger{&background_tasks.PeriodicTrigger{CronExpr: cronExpr}},
		Function: func(ctx context.Context) error {
			if retention <= 0 {
				return nil
			}
			n, err := history.DeleteBefore(ctx, clk.Now().Add(-retention))
			if err != nil {
				return errors.Wrap(err, "prune transitions")
			}
			if n > 0 {
				zlog.Sugar().Infof("pruned %d transition record(s)", n)
			}
			obs.ObservePruned(n)
			return nil
		},
		RetryPolicy: background_tasks.RetryPolicy{MaxRetries: 2, Delay: time.Minute},
	}
}
