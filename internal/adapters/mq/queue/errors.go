package queue

import "errors"

// Sentinel kinds for rejected jobs.
var (
	ErrFull   = errors.New("queue full")
	ErrClosed = errors.New("queue closed")
)
