package domain

import "errors"

// Error taxonomy shared by every component. Callers match with errors.Is.
var (
	// ErrNotFound means the entity or profile does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientData means there is too little activity to predict.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrNoIdentifier means resolution was requested without any identifier.
	ErrNoIdentifier = errors.New("no identifier supplied")

	// ErrInvalidInput means a request argument failed validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable wraps a backing-store failure.
	ErrStoreUnavailable = errors.New("backing store unavailable")
)
