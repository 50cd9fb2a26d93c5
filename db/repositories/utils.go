package repositories

import (
	"fmt"
	"reflect"
)

// UpdateField sets fieldName on a struct or pointer to struct and returns the result.
func UpdateField[T interface{}](input T, fieldName string, newValue interface{}) (T, error) {
	val := reflect.ValueOf(input)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	} else {
		val = reflect.ValueOf(&input).Elem()
	}

	if val.Kind() != reflect.Struct {
		return input, fmt.Errorf("not a struct: %T", input)
	}

	field := val.FieldByName(fieldName)
	if !field.IsValid() {
		return input, fmt.Errorf("field not found: %v", fieldName)
	}
	if !field.CanSet() {
		return input, fmt.Errorf("field not settable: %v", fieldName)
	}
	if !reflect.TypeOf(newValue).ConvertibleTo(field.Type()) {
		return input, fmt.Errorf("incompatible value: %v", newValue)
	}

	field.Set(reflect.ValueOf(newValue).Convert(field.Type()))
	return input, nil
}

// IsEmptyValue reports whether value is nil or the zero value, looking through one pointer.
func IsEmptyValue(value interface{}) bool {
	if value == nil {
		return true
	}

	val := reflect.ValueOf(value)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return true
		}
		val = val.Elem()
	}
	return val.IsZero()
}
