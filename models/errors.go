package models

import "errors"

// Error taxonomy shared by the adapter packages. Concrete errors wrap one of
// these so callers can classify them with errors.Is.
var (
	// ErrConnection is a transport-level failure; the supervisor reconnects.
	ErrConnection = errors.New("connection error")
	// ErrDecode marks a malformed frame; the supervisor reconnects.
	ErrDecode = errors.New("decode error")
	// ErrParse marks an unrecognised timestamp format in a frame.
	ErrParse = errors.New("parse error")
	// ErrValidation marks a caller-supplied request that cannot be translated.
	ErrValidation = errors.New("validation error")
	// ErrCredential marks missing or invalid credentials; fatal at startup.
	ErrCredential = errors.New("credential error")
	// ErrUnsupported marks an operation unavailable for an exchange or trading mode.
	ErrUnsupported = errors.New("unsupported")
)
