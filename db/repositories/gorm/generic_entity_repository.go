package repositories_gorm

import (
	"context"
	"time"

	"gorm.io/gorm"

	"gitlab.com/gfxd/gpu-mode-service/db/repositories"
)

const createdAtField = "CreatedAt"

// GenericEntityRepositoryGORM implements repositories.GenericEntityRepository on top of GORM.
type GenericEntityRepositoryGORM[T repositories.ModelType] struct {
	db *gorm.DB
}

func NewGenericEntityRepository[T repositories.ModelType](db *gorm.DB) repositories.GenericEntityRepository[T] {
	return &GenericEntityRepositoryGORM[T]{db: db}
}

func (repo *GenericEntityRepositoryGORM[T]) GetQuery() repositories.Query[T] {
	return repositories.Query[T]{}
}

// Save appends data as the newest row. Identity and timestamps of a previously loaded
// record are reset so the row is always new.
func (repo *GenericEntityRepositoryGORM[T]) Save(ctx context.Context, data T) (T, error) {
	data, _ = repositories.UpdateField(data, "ID", "")
	data, _ = repositories.UpdateField(data, createdAtField, time.Time{})

	err := repo.db.WithContext(ctx).Create(&data).Error
	return data, handleDBError(err)
}

func (repo *GenericEntityRepositoryGORM[T]) Get(ctx context.Context) (T, error) {
	var result T

	query := repo.GetQuery()
	query.SortBy = "-" + createdAtField

	db := applyConditions(repo.db.WithContext(ctx).Model(new(T)), query)
	err := db.First(&result).Error
	return result, handleDBError(err)
}

func (repo *GenericEntityRepositoryGORM[T]) Clear(ctx context.Context) error {
	err := repo.db.WithContext(ctx).Where("id IS NOT NULL").Delete(new(T)).Error
	return handleDBError(err)
}

func (repo *GenericEntityRepositoryGORM[T]) History(ctx context.Context, query repositories.Query[T]) ([]T, error) {
	var results []T
	db := applyConditions(repo.db.WithContext(ctx).Model(new(T)), query)
	err := db.Find(&results).Error
	return results, handleDBError(err)
}
