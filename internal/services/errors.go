package services

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNoRateGroup       = errors.New("area has no rate group")
	ErrUnknownRateType   = errors.New("unknown additional rate type")
)
