package model

import (
	"errors"
)

var (
	ErrUnknownStatus     = errors.New("unknown status")
	ErrCycle             = errors.New("dependency cycle")
	ErrUnknownRule       = errors.New("unknown inversion rule")
	ErrUnknownProbe      = errors.New("unknown probe")
	ErrDuplicateJob      = errors.New("duplicate job id")
	ErrResourceExhausted = errors.New("resource pool exhausted")
	ErrPoolClosed        = errors.New("resource pool closed")
)
