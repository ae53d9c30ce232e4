package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConcurrentUpdate indicates the record changed between read and
	// conditional write; the in-flight operation must abort without applying
	// a partial update.
	ErrConcurrentUpdate = errors.New("repository: concurrent update detected")
)
