package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/rentflow/payments/internal/config"
	"github.com/rentflow/payments/internal/events"
)

// Publisher writes payment lifecycle events to Kafka, keyed so that all
// events for one payment land on the same partition in order.
type Publisher struct {
	producer *kafka.Producer
	logger   *slog.Logger
}

func NewPublisher(cfg config.KafkaConfig, logger *slog.Logger) (*Publisher, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.BootstrapServers,
		"client.id":         cfg.ClientID,
		"acks":              acksOrDefault(cfg.Acks),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	p := &Publisher{
		producer: producer,
		logger:   logger,
	}
	go p.logDeliveryReports()
	return p, nil
}

func acksOrDefault(acks string) string {
	if acks == "" {
		return "all"
	}
	return acks
}

func (p *Publisher) logDeliveryReports() {
	for e := range p.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				p.logger.Error("event delivery failed",
					"topic", deref(ev.TopicPartition.Topic),
					"key", string(ev.Key),
					"error", ev.TopicPartition.Error)
			}
		case kafka.Error:
			p.logger.Error("kafka producer error", "error", ev)
		}
	}
}

func (p *Publisher) PublishPaymentCreated(ctx context.Context, event events.PaymentCreated) error {
	return p.publish(events.TopicPaymentCreated, event.PaymentID.String(), event)
}

func (p *Publisher) PublishPaymentCompleted(ctx context.Context, event events.PaymentCompleted) error {
	return p.publish(events.TopicPaymentCompleted, event.PaymentID.String(), event)
}

func (p *Publisher) PublishPaymentFailed(ctx context.Context, event events.PaymentFailed) error {
	return p.publish(events.TopicPaymentFailed, event.PaymentID.String(), event)
}

func (p *Publisher) PublishPaymentScheduled(ctx context.Context, event events.PaymentScheduled) error {
	return p.publish(events.TopicPaymentScheduled, event.ScheduleID.String(), event)
}

// publish enqueues the event; delivery outcomes arrive asynchronously on the
// producer's event channel and are logged there.
func (p *Publisher) publish(topic, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          payload,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to produce to %s: %w", topic, err)
	}
	return nil
}

// Close flushes outstanding messages and shuts the producer down.
func (p *Publisher) Close() {
	remaining := p.producer.Flush(5000)
	if remaining > 0 {
		p.logger.Warn("closing producer with undelivered events", "count", remaining)
	}
	p.producer.Close()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
