package reactivebridge

import "errors"

// Sentinel errors returned by this package's suspension points. Callers
// should match them with errors.Is, since library internals may wrap them
// with additional context.
var (
	// ErrCancelled is returned when a suspension point's Task is cancelled
	// before it would otherwise have resumed.
	ErrCancelled = errors.New("reactivebridge: cancelled")

	// ErrConcurrentAccess is returned to the contending caller when two
	// goroutines attempt overlapping Send/SendCompletion calls on the same
	// AsyncChannel.
	ErrConcurrentAccess = errors.New("reactivebridge: concurrent access")

	// ErrOutputToFinished is returned when Send or SendCompletion is called
	// on an AsyncChannel that has already reached a terminal state.
	ErrOutputToFinished = errors.New("reactivebridge: output to finished channel")
)
