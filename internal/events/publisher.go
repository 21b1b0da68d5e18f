// Package events publishes record lifecycle events (inserts, refreshes) to
// downstream consumers. Publication is decoupled from persistence: a
// publisher failure is logged and never surfaces to the record operation that
// produced the event.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/activerow/activerow/internal/core"
)

var (
	// ErrPublisherClosed is returned when publishing to a closed publisher.
	ErrPublisherClosed = errors.New("publisher is closed")
)

// Publisher delivers record lifecycle events to a downstream sink.
type Publisher interface {
	Publish(ctx context.Context, event core.RecordEvent) error
	Close() error
}

// MemoryPublisher collects events in memory. Useful for tests and for
// deployments that do not configure an external broker.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []core.RecordEvent
	closed bool
}

// NewMemoryPublisher creates an in-memory publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish appends the event to the in-memory log.
func (p *MemoryPublisher) Publish(ctx context.Context, event core.RecordEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPublisherClosed
	}
	p.events = append(p.events, event)
	return nil
}

// Events returns a copy of every published event in publication order.
func (p *MemoryPublisher) Events() []core.RecordEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	events := make([]core.RecordEvent, len(p.events))
	copy(events, p.events)
	return events
}

// Close marks the publisher closed.
func (p *MemoryPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// KafkaPublisherConfig holds configuration for the Kafka publisher.
type KafkaPublisherConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	RequiredAcks int // 0, 1, or -1 (all)
}

// KafkaPublisher publishes record lifecycle events to a Kafka topic.
// Messages are keyed by table name so events for one table stay ordered
// within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
	mu     sync.RWMutex
	closed bool
}

// NewKafkaPublisher creates a Kafka-backed event publisher.
func NewKafkaPublisher(config KafkaPublisherConfig) (*KafkaPublisher, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}

	log.Printf("[EVENTS] Initializing Kafka publisher, brokers: %v, topic: %s", config.Brokers, config.Topic)

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    config.BatchSize,
		BatchTimeout: config.BatchTimeout,
		WriteTimeout: config.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(config.RequiredAcks),
		MaxAttempts:  3,
		Async:        false,
	}

	return &KafkaPublisher{
		writer: writer,
		topic:  config.Topic,
	}, nil
}

// Publish serializes the event as JSON and writes it to the topic.
func (p *KafkaPublisher) Publish(ctx context.Context, event core.RecordEvent) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPublisherClosed
	}
	p.mu.RUnlock()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(event.Table),
		Value: payload,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(string(event.Kind))},
			{Key: "table", Value: []byte(event.Table)},
		},
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write event to Kafka: %w", err)
	}
	log.Printf("[EVENTS] Published %s event for table %s to topic %s", event.Kind, event.Table, p.topic)
	return nil
}

// Close closes the underlying Kafka writer.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}
