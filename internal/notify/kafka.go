package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// KafkaPublisher produces reminders to a Kafka topic for the push gateway.
type KafkaPublisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewKafkaPublisher creates a producer for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaPublisher{writer: w, logger: logger.With("component", "push")}
}

// Publish writes the batch in a single WriteMessages call. Per-message
// failures are returned as *PartialError.
func (p *KafkaPublisher) Publish(ctx context.Context, msgs []PushMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]kafkago.Message, len(msgs))
	for i := range msgs {
		m, err := serializeToMessage(msgs[i])
		if err != nil {
			return err
		}
		out[i] = m
	}

	err := p.writer.WriteMessages(ctx, out...)
	var werrs kafkago.WriteErrors
	if errors.As(err, &werrs) {
		p.logger.Warn("kafka partial write", "failed", werrs.Count(), "total", len(msgs))
		return &PartialError{Errs: werrs}
	}
	return err
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a PushMessage keyed by device so that every
// reminder for one device lands on the same partition.
func serializeToMessage(m PushMessage) (kafkago.Message, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize push message: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(m.DeviceUID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "message_id", Value: []byte(m.ID)},
			{Key: "created_at", Value: []byte(m.CreatedAt.Format(time.RFC3339))},
		},
	}, nil
}
