package video

import "errors"

var (
	// ErrBackendUnavailable means the backend lookup failed or timed out. Callers may retry.
	ErrBackendUnavailable = errors.New("video info backend unavailable")
	// ErrNotFound means the backend has no entry for the requested key.
	ErrNotFound = errors.New("video info not found")
	// ErrInvalidConfiguration is returned when the cache is built with unusable bounds.
	ErrInvalidConfiguration = errors.New("invalid video info cache configuration")
)
