package logparse

import "errors"

// Sentinel error kinds for skipped lines.
var (
	ErrMalformedLine    = errors.New("malformed line")
	ErrUnsupportedEvent = errors.New("unsupported event")
)
