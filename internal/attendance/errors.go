package attendance

import "errors"

var (
	// ErrSessionNotActive covers both a missing and a completed session. The
	// scanning client is expected to halt on it.
	ErrSessionNotActive = errors.New("session is not active")
	ErrRecordNotFound   = errors.New("attendance record not found")
	ErrInvalidStatus    = errors.New("invalid attendance status")
)
