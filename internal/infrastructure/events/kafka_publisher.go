// Package events publishes committed conversation changes to Kafka so that
// notification and analytics consumers can follow the ledger.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"kowa/internal/domain/entity"
)

// envelope is the record value written to the topic.
type envelope struct {
	entity.DomainEvent
	OccurredAt time.Time `json:"occurred_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaPublisher{writer: w, topic: topic, now: time.Now}
}

// Publish keys records by conversation so one conversation stays ordered
// within a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, event entity.DomainEvent) error {
	at := p.now().UTC()
	b, err := json.Marshal(envelope{DomainEvent: event, OccurredAt: at})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.ConversationID),
		Value: b,
		Time:  at,
		Headers: []kafkago.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.Type, p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
