package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"tradehub/internal/domain/service"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RemediationPublisher ships abandoned follow-ups to a Kafka topic so an
// operator or a repair job can replay them.
type RemediationPublisher struct {
	writer messageWriter
	topic  string
}

func NewRemediationPublisher(brokers []string, topic string) (*RemediationPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka publisher requires a topic")
	}
	return &RemediationPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		topic: topic,
	}, nil
}

func (p *RemediationPublisher) Report(ctx context.Context, failure service.FailedFollowUp) error {
	payload, err := json.Marshal(failure)
	if err != nil {
		return fmt.Errorf("encode follow-up failure: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(failure.AggregateID),
		Value: payload,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(failure.Kind)},
		},
	})
}

func (p *RemediationPublisher) Close() error {
	return p.writer.Close()
}
