package dispatcher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	kafkago "github.com/segmentio/kafka-go"

	"distribution/pkg/domain/service"
)

// Envelope is the message value published for every event.
type Envelope struct {
	Type       string        `json:"type"`
	OccurredAt time.Time     `json:"occurredAt"`
	Event      service.Event `json:"event"`
}

// MessageWriter is the part of *kafkago.Writer the dispatcher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type KafkaDispatcher struct {
	writer MessageWriter
	now    func() time.Time
}

func NewKafkaWriter(brokers []string, topic string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaDispatcher(writer MessageWriter) *KafkaDispatcher {
	return &KafkaDispatcher{writer: writer, now: time.Now}
}

// Dispatch keys messages by event type so one kind of event stays ordered on a partition.
func (d *KafkaDispatcher) Dispatch(ctx context.Context, event service.Event) error {
	payload, err := json.Marshal(Envelope{
		Type:       event.Type(),
		OccurredAt: d.now().UTC(),
		Event:      event,
	})
	if err != nil {
		return errors.Wrapf(err, "marshal %s", event.Type())
	}
	err = d.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(event.Type()),
		Value: payload,
	})
	return errors.Wrapf(err, "publish %s", event.Type())
}

func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}
