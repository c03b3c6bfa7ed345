package repository

import "errors"

// Sentinel kinds for store and standings errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrInvalidLimit = errors.New("invalid standings limit")
)
