package session

import "errors"

var (
	ErrAlreadyActive    = errors.New("class already has an active session")
	ErrNotFound         = errors.New("session not found")
	ErrAlreadyCompleted = errors.New("session is already completed")
)
