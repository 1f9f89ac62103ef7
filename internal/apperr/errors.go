// Package apperr holds the sentinel errors shared across notesync packages.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// ErrNoMatch is returned when match terms select no note and nothing
	// can be created from them.
	ErrNoMatch = errors.New("no matching notes")
	// ErrAmbiguous is returned when an operation needs exactly one note.
	ErrAmbiguous = errors.New("more than one matching note")
	// ErrPublishTimeout is returned when the remote never reflected a
	// publish or unpublish request within the poll budget.
	ErrPublishTimeout = errors.New("publish state not confirmed by remote")
)
