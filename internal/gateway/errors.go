package gateway

import "errors"

var (
	// ErrQuit is returned by Router.Run and Gateway.Run after a quit command.
	ErrQuit = errors.New("gateway: quit requested")

	// ErrMissingDependency indicates a required option was not supplied.
	ErrMissingDependency = errors.New("gateway: missing dependency")
)
