package domain

import "errors"

var (
	// ErrSourceUnavailable is returned when the catalog source cannot be reached
	ErrSourceUnavailable = errors.New("catalog source unavailable")

	// ErrMalformedRecord is returned when a single catalog record cannot be parsed
	ErrMalformedRecord = errors.New("malformed catalog record")

	// ErrPersistenceFailure is returned when a snapshot cannot be read from or written to disk
	ErrPersistenceFailure = errors.New("snapshot persistence failed")

	// ErrSnapshotNotFound is returned when no persisted snapshot exists
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")
)
