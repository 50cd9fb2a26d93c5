package repositories_gorm

import (
	"context"
	"time"

	"gorm.io/gorm"

	"gitlab.com/gfxd/gpu-mode-service/db/repositories"
	"gitlab.com/gfxd/gpu-mode-service/models"
)

type GfxConfigRepositoryGORM struct {
	repositories.GenericEntityRepository[models.GfxConfig]
}

func NewGfxConfigRepository(db *gorm.DB) repositories.GfxConfigRepository {
	return &GfxConfigRepositoryGORM{
		NewGenericEntityRepository[models.GfxConfig](db),
	}
}

type TransitionRepositoryGORM struct {
	repositories.GenericRepository[models.Transition]
	db *gorm.DB
}

func NewTransitionRepository(db *gorm.DB) repositories.TransitionRepository {
	return &TransitionRepositoryGORM{
		GenericRepository: NewGenericRepository[models.Transition](db),
		db:                db,
	}
}

func (repo *TransitionRepositoryGORM) Latest(ctx context.Context, limit int) ([]models.Transition, error) {
	query := repo.GetQuery()
	query.SortBy = "-" + createdAtField
	query.Limit = limit
	return repo.FindAll(ctx, query)
}

func (repo *TransitionRepositoryGORM) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	res := repo.db.WithContext(ctx).
		Where("created_at < ? AND status <> ?", t, models.TransitionPending).
		Delete(&models.Transition{})
	return res.RowsAffected, handleDBError(res.Error)
}
