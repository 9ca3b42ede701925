package events

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
)

// Kafka publishes events to one topic, keyed by employee so a consumer sees
// one employee's decisions in order.
type Kafka struct {
	writer *kafkago.Writer
}

// NewKafka builds an async writer: WriteMessages returns as soon as the
// message is queued.
func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireOne,
			Async:                  true,
			AllowAutoTopicCreation: true,
		},
	}
}

func (k *Kafka) Publish(ctx context.Context, e Event) error {
	msg, err := toMessage(e)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, msg)
}

func (k *Kafka) Close() error { return k.writer.Close() }

func toMessage(e Event) (kafkago.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("encode event %s: %w", e.Type, err)
	}
	return kafkago.Message{
		Key:   []byte(e.Key),
		Value: value,
		Time:  e.OccurredAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}, nil
}
