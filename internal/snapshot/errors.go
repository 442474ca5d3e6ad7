package snapshot

import "errors"

// Domain errors for the snapshot loader.
var (
	// ErrLoadFailed wraps any failure of the three snapshot reads. The
	// device state stays unknown.
	ErrLoadFailed = errors.New("snapshot: load failed")

	// ErrClosed is returned by Load after Close.
	ErrClosed = errors.New("snapshot: loader closed")
)
