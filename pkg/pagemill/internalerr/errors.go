package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyInProgress = errors.New("generation already in progress")
	ErrAlreadyGenerated  = errors.New("article already generated")
	ErrInvalidState      = errors.New("invalid status for operation")
	ErrUpstream          = errors.New("upstream generation failed")
	ErrPersistence       = errors.New("persistence failure")
	ErrInvalidConfig     = errors.New("invalid configuration")
)
