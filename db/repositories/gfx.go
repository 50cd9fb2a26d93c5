package repositories

import (
	"context"
	"time"

	"gitlab.com/gfxd/gpu-mode-service/models"
)

// GfxConfigRepository stores the saved mode configuration.
type GfxConfigRepository interface {
	GenericEntityRepository[models.GfxConfig]
}

// TransitionRepository stores the mode transition history.
type TransitionRepository interface {
	GenericRepository[models.Transition]
	// Latest returns up to limit transitions, newest first.
	Latest(ctx context.Context, limit int) ([]models.Transition, error)
	// DeleteBefore removes finished transitions created before t and reports how many went.
	DeleteBefore(ctx context.Context, t time.Time) (int64, error)
}
