package redis

import "errors"

// Sentinel errors for Redis operations.
var (
	// ErrConnectionFailed indicates the initial connection attempts gave up.
	ErrConnectionFailed = errors.New("redis: connection failed")

	// ErrNotConnected indicates the client has been closed.
	ErrNotConnected = errors.New("redis: not connected")

	// ErrPublishFailed indicates a PUBLISH command failed.
	ErrPublishFailed = errors.New("redis: publish failed")

	// ErrSubscribeFailed indicates the subscription could not be confirmed.
	ErrSubscribeFailed = errors.New("redis: subscribe failed")

	// ErrTransactionFailed indicates a pipelined MULTI/EXEC batch failed.
	ErrTransactionFailed = errors.New("redis: transaction failed")
)
