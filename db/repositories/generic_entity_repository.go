package repositories

import (
	"context"
)

// GenericEntityRepository handles a single logical record. Every Save appends a row and the
// newest row is the current value, older rows are its history.
type GenericEntityRepository[T ModelType] interface {
	Save(ctx context.Context, data T) (T, error)
	// Get returns the newest record or NotFoundError.
	Get(ctx context.Context) (T, error)
	// Clear removes the record and its history.
	Clear(ctx context.Context) error
	History(ctx context.Context, query Query[T]) ([]T, error)
	GetQuery() Query[T]
}
