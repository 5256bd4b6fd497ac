package storage

import "errors"

var (
	// ErrLockTimeout means the store lock could not be acquired within
	// the configured bound. No partial write has occurred.
	ErrLockTimeout = errors.New("storage: timed out waiting for queue lock")

	// ErrDuplicateID means an append collided with an existing job id.
	ErrDuplicateID = errors.New("storage: job id already exists")

	// ErrCorruptStore means the persisted job collection could not be
	// parsed. This is fatal: treating it as an empty store would
	// silently discard durable data.
	ErrCorruptStore = errors.New("storage: job file is corrupt")
)
