// Package state defines domain-specific errors
package state

import "errors"

var (
	ErrInvalidRole      = errors.New("invalid message role")
	ErrEmptyMessage     = errors.New("message content cannot be empty")
	ErrInvalidQueryType = errors.New("invalid query type")
)
