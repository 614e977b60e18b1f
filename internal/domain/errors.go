package domain

import "errors"

var (
	ErrRecordNotFound = errors.New("task record not found")
)
