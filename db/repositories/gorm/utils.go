package repositories_gorm

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"gorm.io/gorm"

	"gitlab.com/gfxd/gpu-mode-service/db/repositories"
)

func handleDBError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repositories.NotFoundError
	case errors.Is(err, gorm.ErrInvalidData), errors.Is(err, gorm.ErrInvalidField), errors.Is(err, gorm.ErrInvalidValue):
		return repositories.InvalidDataError
	default:
		zlog.Sugar().Debugf("database error: %v", err)
		return fmt.Errorf("%w: %v", repositories.DatabaseError, err)
	}
}

// applyConditions turns a repositories.Query into WHERE, ORDER BY, LIMIT and OFFSET clauses.
func applyConditions[T any](db *gorm.DB, query repositories.Query[T]) *gorm.DB {
	tableName := db.NamingStrategy.TableName(reflect.TypeOf(*new(T)).Name())

	for _, condition := range query.Conditions {
		columnName := db.NamingStrategy.ColumnName(tableName, condition.Field)
		if condition.Operator == "IN" {
			db = db.Where(fmt.Sprintf("%s IN ?", columnName), condition.Value)
			continue
		}
		db = db.Where(fmt.Sprintf("%s %s ?", columnName, condition.Operator), condition.Value)
	}

	if !repositories.IsEmptyValue(query.Instance) {
		exampleType := reflect.TypeOf(query.Instance)
		exampleValue := reflect.ValueOf(query.Instance)
		for i := 0; i < exampleType.NumField(); i++ {
			field := exampleType.Field(i)
			if field.Anonymous {
				continue
			}
			fieldValue := exampleValue.Field(i).Interface()
			if !repositories.IsEmptyValue(fieldValue) {
				columnName := db.NamingStrategy.ColumnName(tableName, field.Name)
				db = db.Where(fmt.Sprintf("%s = ?", columnName), fieldValue)
			}
		}
	}

	if query.SortBy != "" {
		field, order := query.SortBy, "ASC"
		if strings.HasPrefix(field, "-") {
			field, order = strings.TrimPrefix(field, "-"), "DESC"
		}
		db = db.Order(fmt.Sprintf("%s %s", db.NamingStrategy.ColumnName(tableName, field), order))
	}

	if query.Limit > 0 {
		db = db.Limit(query.Limit)
	}
	if query.Offset > 0 {
		db = db.Offset(query.Offset)
	}

	return db
}
