// Package sentinel lists the few errors stores may return. Services translate
// them into coded domain errors; handlers never see them.
package sentinel

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrAlreadyUsed reports a unique constraint: a taken name or key digest.
	ErrAlreadyUsed = errors.New("already used")
	// ErrInvalidState reports a conditional update that matched no row
	// because another writer moved the record first.
	ErrInvalidState = errors.New("invalid state")
)
