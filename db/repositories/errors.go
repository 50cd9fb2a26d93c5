package repositories

import (
	"errors"
)

var (
	InvalidDataError = errors.New("invalid data given")
	NotFoundError    = errors.New("record not found")
	DatabaseError    = errors.New("database error")
)
