package core

import "errors"

var (
	// ErrNilEntry is returned when an operation is handed a nil *Entry.
	ErrNilEntry = errors.New("timer: nil entry")

	// ErrAlreadyPending is returned by Add and Init for an attached entry.
	ErrAlreadyPending = errors.New("timer: entry already pending")

	// ErrWrongQueue is returned when an entry owned by one CPU's queue is
	// armed on another. Entries never migrate between CPUs.
	ErrWrongQueue = errors.New("timer: entry owned by another cpu")

	ErrInvalidCPU         = errors.New("timer: invalid cpu")
	ErrNotInitialized     = errors.New("timer: subsystem not initialized")
	ErrAlreadyInitialized = errors.New("timer: subsystem already initialized")
	ErrMarginTooLarge     = errors.New("timer: margin must be smaller than the minimum slack")
	ErrUnknownPolicy      = errors.New("timer: unknown next-deadline policy")
)
