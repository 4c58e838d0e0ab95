package store

import "errors"

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateKey   = errors.New("already exists")
	// ErrStaleTransition is returned when a compare-and-set update matched
	// no row: the job moved to another status (or another owner) first.
	ErrStaleTransition = errors.New("stale status transition")
)
