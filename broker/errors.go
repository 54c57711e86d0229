package broker

import "errors"

var (
	// ErrShutdown is returned by Publish once Shutdown has been called.
	ErrShutdown = errors.New("broker: shut down")

	// ErrInvalidMessage is returned when a publish fails validation: an
	// empty topic or an empty payload.
	ErrInvalidMessage = errors.New("broker: invalid message")

	// ErrSerialization is returned by codec-facing helpers when a value
	// cannot be encoded in one of the five kinds a Message payload allows.
	ErrSerialization = errors.New("broker: serialization failed")
)
