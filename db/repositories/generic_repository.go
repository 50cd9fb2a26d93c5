package repositories

import (
	"context"
)

// QueryCondition restricts a query on one field.
type QueryCondition struct {
	Field    string // struct field name, mapped to its column by the repository
	Operator string
	Value    interface{}
}

type ModelType interface{}

// Query carries conditions, sorting and paging for a repository lookup. Non-zero fields of
// Instance become equality conditions.
type Query[T any] struct {
	Instance   T
	Conditions []QueryCondition
	// SortBy is a struct field name, prefixed with "-" for descending order.
	SortBy string
	Limit  int
	Offset int
}

// GenericRepository defines CRUD operations over a table of records.
type GenericRepository[T ModelType] interface {
	Create(ctx context.Context, data T) (T, error)
	Get(ctx context.Context, id interface{}) (T, error)
	// Update writes the non-zero fields of data to the record with the given id.
	Update(ctx context.Context, id interface{}, data T) (T, error)
	Delete(ctx context.Context, id interface{}) error
	// Find returns the first record matching query.
	Find(ctx context.Context, query Query[T]) (T, error)
	FindAll(ctx context.Context, query Query[T]) ([]T, error)
	GetQuery() Query[T]
}

func EQ(field string, value interface{}) QueryCondition {
	return QueryCondition{Field: field, Operator: "=", Value: value}
}

func GT(field string, value interface{}) QueryCondition {
	return QueryCondition{Field: field, Operator: ">", Value: value}
}

func GTE(field string, value interface{}) QueryCondition {
	return QueryCondition{Field: field, Operator: ">=", Value: value}
}

func LT(field string, value interface{}) QueryCondition {
	return QueryCondition{Field: field, Operator: "<", Value: value}
}

func LTE(field string, value interface{}) QueryCondition {
	return QueryCondition{Field: field, Operator: "<=", Value: value}
}

func IN(field string, values []interface{}) QueryCondition {
	return QueryCondition{Field: field, Operator: "IN", Value: values}
}
