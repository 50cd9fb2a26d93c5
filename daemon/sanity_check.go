package daemon

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"gitlab.com/gfxd/gpu-mode-service/db/repositories"
	"gitlab.com/gfxd/gpu-mode-service/models"
)

// SanityCheck marks transitions still pending from a previous run as cancelled. The daemon
// starts with no pending transition, so such records can never finish.
func SanityCheck(ctx context.Context, history repositories.TransitionRepository, now time.Time) error {
	stale, err := history.FindAll(ctx, repositories.Query[models.Transition]{
		Instance: models.Transition{Status: models.TransitionPending},
	})
	if err != nil {
		return errors.Wrap(err, "find pending transitions")
	}

	var errs error
	for _, t := range stale {
		zlog.Sugar().Infof("transition %s to %s was interrupted, marking it cancelled", t.ID, t.Target)
		t.Status = models.TransitionCancelled
		t.Error = "interrupted by daemon restart"
		t.FinishedAt = &now
		if _, err := history.Update(ctx, t.ID, t); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "update transition %s", t.ID))
		}
	}
	return errs
}
