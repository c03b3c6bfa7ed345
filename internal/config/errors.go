package config

import (
	"errors"
)

// Sentinel error kinds returned by Load, Validate and Catalog.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)
