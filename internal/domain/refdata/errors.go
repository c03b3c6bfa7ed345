package refdata

import "errors"

// Sentinel error kinds for catalog construction.
var (
	ErrInvalidReference = errors.New("invalid reference")
	ErrDuplicate        = errors.New("duplicate entry")
)
