package bingo

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidMembership  = errors.New("seed not issued in this room")
	ErrValidation         = errors.New("validation failed")
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrUnverifiedWin rejects a claim whose marks do not form the room's pattern.
	ErrUnverifiedWin = errors.New("claimed card does not satisfy the win pattern")
)
