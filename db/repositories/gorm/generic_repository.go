package repositories_gorm

import (
	"context"

	"gorm.io/gorm"

	"gitlab.com/gfxd/gpu-mode-service/db/repositories"
)

// GenericRepositoryGORM implements repositories.GenericRepository on top of GORM.
// It is meant to be embedded in model repositories.
type GenericRepositoryGORM[T repositories.ModelType] struct {
	db *gorm.DB
}

func NewGenericRepository[T repositories.ModelType](db *gorm.DB) repositories.GenericRepository[T] {
	return &GenericRepositoryGORM[T]{db: db}
}

func (repo *GenericRepositoryGORM[T]) GetQuery() repositories.Query[T] {
	return repositories.Query[T]{}
}

func (repo *GenericRepositoryGORM[T]) Create(ctx context.Context, data T) (T, error) {
	err := repo.db.WithContext(ctx).Create(&data).Error
	return data, handleDBError(err)
}

func (repo *GenericRepositoryGORM[T]) Get(ctx context.Context, id interface{}) (T, error) {
	var result T
	err := repo.db.WithContext(ctx).First(&result, "id = ?", id).Error
	return result, handleDBError(err)
}

func (repo *GenericRepositoryGORM[T]) Update(ctx context.Context, id interface{}, data T) (T, error) {
	res := repo.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(data)
	if res.Error != nil {
		return data, handleDBError(res.Error)
	}
	if res.RowsAffected == 0 {
		return data, repositories.NotFoundError
	}
	return repo.Get(ctx, id)
}

func (repo *GenericRepositoryGORM[T]) Delete(ctx context.Context, id interface{}) error {
	err := repo.db.WithContext(ctx).Delete(new(T), "id = ?", id).Error
	return handleDBError(err)
}

func (repo *GenericRepositoryGORM[T]) Find(ctx context.Context, query repositories.Query[T]) (T, error) {
	var result T
	db := applyConditions(repo.db.WithContext(ctx).Model(new(T)), query)
	err := db.First(&result).Error
	return result, handleDBError(err)
}

func (repo *GenericRepositoryGORM[T]) FindAll(ctx context.Context, query repositories.Query[T]) ([]T, error) {
	var results []T
	db := applyConditions(repo.db.WithContext(ctx).Model(new(T)), query)
	err := db.Find(&results).Error
	return results, handleDBError(err)
}
