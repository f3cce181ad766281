// SPDX-License-Identifier: GPL-3.0-or-later

package event

// Error is an error of the simulation harness.
//
// Each error wraps the errno a real network stack would return in
// a similar situation, so [errors.Is] works with [syscall.Errno] values
// and the errors are classified like real network errors.
type Error struct {
	message string
	errno   error
}

// NewError creates a new [*Error] with the given message and errno.
func NewError(message string, errno error) *Error {
	return &Error{message: message, errno: errno}
}

// Error implements error.
func (e *Error) Error() string {
	return e.message
}

// Unwrap returns the underlying errno.
func (e *Error) Unwrap() error {
	return e.errno
}

var (
	// ErrDuplicateEndpoint indicates that an endpoint is already registered.
	ErrDuplicateEndpoint = NewError("duplicate endpoint", EADDRINUSE)

	// ErrUnknownEndpoint indicates that an endpoint is not registered.
	ErrUnknownEndpoint = NewError("unknown endpoint", EHOSTUNREACH)

	// ErrNetworkClosed indicates that the network has been closed.
	ErrNetworkClosed = NewError("network closed", ENETDOWN)

	// ErrNoServiceBound indicates that a peer has no bound service.
	ErrNoServiceBound = NewError("no service bound", EINVAL)

	// ErrAlreadyBound indicates that a peer already has a bound service.
	ErrAlreadyBound = NewError("service already bound", EISCONN)

	// ErrUnknownPeer indicates that an application-level peer ID is unknown.
	ErrUnknownPeer = NewError("unknown peer", ENOTCONN)
)
