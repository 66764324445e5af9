package notifications

import (
	"context"

	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/kafka"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/model"
)

// KafkaChannel publishes booking events to the notifications topic, keyed by
// booking ref for per-booking ordering. The downstream gateway for each
// transport filters on the channel header.
type KafkaChannel struct {
	producer *kafka.Producer
	source   string
}

func NewKafkaChannel(producer *kafka.Producer, source string) *KafkaChannel {
	return &KafkaChannel{
		producer: producer,
		source:   source,
	}
}

func (c *KafkaChannel) Send(ctx context.Context, event model.BookingEvent) error {
	msg := kafka.NewMessage().
		WithKey(event.BookingRef).
		WithValue(event).
		WithEventType(event.Type).
		WithChannel(event.Channel).
		WithSource(c.source).
		Build()

	return c.producer.Publish(ctx, msg)
}
