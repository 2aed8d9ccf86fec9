package service

import (
	"context"

	log "github.com/sirupsen/logrus"
)

type Event interface{ Type() string }

type EventDispatcher interface {
	Dispatch(ctx context.Context, event Event) error
}

// dispatchEvents never fails the calling operation: the state change is already durable.
func dispatchEvents(ctx context.Context, dispatcher EventDispatcher, logger log.FieldLogger, events ...Event) {
	for _, event := range events {
		if err := dispatcher.Dispatch(ctx, event); err != nil {
			logger.WithError(err).WithField("event", event.Type()).Error("failed to dispatch event")
		}
	}
}
