package repositories

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist. Handlers
	// translate it to a 404 with the operation's wire message.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness
	// constraint, such as registering an email twice.
	ErrConflict = errors.New("record conflict")
)
