package main

import (
	"github.com/pkg/errors"

	"distribution/pkg/domain/model"
)

const (
	exitFailure          = 1
	exitValidation       = 2
	exitNotFound         = 3
	exitPartialWrite     = 4
	exitStoreUnavailable = 5
)

// exitCode checks partial writes first: they wrap a store failure that would
// otherwise classify as unavailable.
func exitCode(err error) int {
	var partial *model.PartialWriteError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &partial):
		return exitPartialWrite
	case errors.Is(err, model.ErrValidation):
		return exitValidation
	case errors.Is(err, model.ErrNotFound):
		return exitNotFound
	case errors.Is(err, model.ErrStoreUnavailable):
		return exitStoreUnavailable
	default:
		return exitFailure
	}
}
