package status

import "errors"

// Sentinel errors for status buffer operations.
var (
	// ErrNotExist indicates a status buffer does not exist and create was not requested.
	ErrNotExist = errors.New("status: buffer does not exist")

	// ErrBufferFull indicates there is no free record left for a new key.
	ErrBufferFull = errors.New("status: header length exceeded")

	// ErrInvalidKey indicates a key that cannot be stored in a record.
	ErrInvalidKey = errors.New("status: invalid key")

	// ErrInvalidInstance indicates an instance id that is not a non-negative integer.
	ErrInvalidInstance = errors.New("status: invalid instance id")

	// ErrLockTimeout indicates the entity lock could not be acquired in time.
	ErrLockTimeout = errors.New("status: lock timeout")

	// ErrNoInstances indicates no requested status buffer could be opened.
	ErrNoInstances = errors.New("status: no status buffers opened")

	// ErrClosed indicates the buffer has been closed.
	ErrClosed = errors.New("status: buffer closed")
)
