package service

import (
	"time"

	"github.com/pkg/errors"

	"distribution/pkg/domain/model"
)

const conflictRetries = 5

// retryOnConflict reruns a read-modify-write until its conditional write lands
// on the version it read. The last conflict is returned once attempts run out.
func retryOnConflict(fn func() error) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		if err = fn(); !errors.Is(err, model.ErrItemConflict) {
			return err
		}
	}
	return err
}

// nextStamp is the updatedAt of a conditional write. It moves at least one
// microsecond past the version read, the coarsest precision a store keeps, so
// the next writer always sees a change.
func nextStamp(read time.Time) time.Time {
	now := time.Now().UTC()
	if now.Sub(read) < time.Microsecond {
		return read.Add(time.Microsecond)
	}
	return now
}
