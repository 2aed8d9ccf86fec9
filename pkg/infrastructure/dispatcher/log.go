// Package dispatcher delivers domain events raised by the services.
package dispatcher

import (
	"context"

	log "github.com/sirupsen/logrus"

	"distribution/pkg/domain/service"
)

// LogDispatcher writes every event as a structured log entry.
type LogDispatcher struct {
	logger log.FieldLogger
}

func NewLogDispatcher(logger log.FieldLogger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(_ context.Context, event service.Event) error {
	d.logger.WithFields(log.Fields{
		"event":   event.Type(),
		"payload": event,
	}).Info("event dispatched")
	return nil
}

// FanOut hands each event to every dispatcher in order and reports the first failure.
type FanOut []service.EventDispatcher

func (f FanOut) Dispatch(ctx context.Context, event service.Event) error {
	var first error
	for _, d := range f {
		if err := d.Dispatch(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
