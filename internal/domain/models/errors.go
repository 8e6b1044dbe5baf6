package models

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or missing input. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidAction indicates a decision action outside approve/reject/execute.
	ErrInvalidAction = fmt.Errorf("%w: invalid action", ErrValidation)

	// ErrNotFound indicates the referenced zone or recommendation does not exist.
	ErrNotFound = errors.New("not found")

	// ErrIllegalTransition indicates the stored decision status did not satisfy
	// the requested action's precondition at write time.
	ErrIllegalTransition = errors.New("illegal decision transition")

	// ErrDuplicateZone indicates another zone of the farm already uses the name.
	ErrDuplicateZone = errors.New("zone name already exists")

	// ErrPersistence indicates the store could not serve the request.
	ErrPersistence = errors.New("persistence unavailable")

	// ErrBlobUnavailable indicates the blob store is not configured or failed.
	ErrBlobUnavailable = errors.New("blob store unavailable")
)
