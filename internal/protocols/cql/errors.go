package cql

import "errors"

// Decode error kinds. InsufficientData is recoverable by waiting for more
// bytes; Malformed and UnknownType are not.
var (
	// ErrInsufficientData means the buffer is shorter than a field requires.
	ErrInsufficientData = errors.New("cql: insufficient data")

	// ErrMalformed means a declared count or length is inconsistent with the
	// actual content.
	ErrMalformed = errors.New("cql: malformed message")

	// ErrUnknownType means an option carried a type id outside the protocol's
	// enumeration.
	ErrUnknownType = errors.New("cql: unknown type id")
)
