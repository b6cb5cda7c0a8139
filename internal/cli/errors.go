package cli

import "errors"

// Error variables for ringctl.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config")
	ErrConfigExists       = errors.New("config file already exists")
	ErrUnknownCommand     = errors.New("unknown command")
	ErrBadAssignment      = errors.New("expected key=value")
	ErrKeyRequired        = errors.New("key is required")
	ErrKeyNotFound        = errors.New("key not found")
	ErrTooManyArgs        = errors.New("too many arguments")
	ErrRingLocked         = errors.New("ring is locked")
)
