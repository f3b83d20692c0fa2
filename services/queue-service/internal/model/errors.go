package model

import "errors"

var (
	// ErrNotFound means no appointment matches the given id.
	ErrNotFound = errors.New("appointment not found")

	// ErrConflict means a concurrent write collided with this one: a duplicate
	// queue number on insert, or a status precondition that no longer holds.
	ErrConflict = errors.New("concurrent write conflict")
)
