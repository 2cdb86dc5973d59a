package service

import "errors"

// Sentinel errors returned by Assess.
var (
	ErrInvalidReading = errors.New("invalid reading")
	ErrNotStarted     = errors.New("service not started")
	ErrInternal       = errors.New("internal error")
)
