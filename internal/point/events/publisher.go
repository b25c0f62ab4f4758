// Package events publishes committed point mutations to downstream consumers
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Aidin1998/pincex_points/pkg/logger"
	"github.com/Aidin1998/pincex_points/pkg/models"
)

// DefaultTopic is the Kafka topic point events go to when none is configured.
const DefaultTopic = "point.events"

// DefaultStream is the Redis stream point events go to when none is configured.
const DefaultStream = "point.events"

// PointEvent describes one committed mutation.
type PointEvent struct {
	ID           uuid.UUID              `json:"id"`
	Type         models.TransactionType `json:"type"`
	UserID       uint64                 `json:"userId"`
	Amount       int64                  `json:"amount"`
	Balance      int64                  `json:"balance"`
	UpdateMillis int64                  `json:"updateMillis"`
	Timestamp    time.Time              `json:"timestamp"`
}

// Publisher defines the interface for event publishers.
// Each publisher owns its destination.
type Publisher interface {
	PublishEvent(ctx context.Context, event *PointEvent) error
}

// Destinations selects where point events are published. A zero field
// disables that publisher.
type Destinations struct {
	KafkaBrokers []string
	KafkaTopic   string
	Redis        redis.UniversalClient
	RedisStream  string
}

// NewPublishers builds one publisher per configured destination.
func NewPublishers(d Destinations, log logger.Logger) []Publisher {
	var publishers []Publisher
	if len(d.KafkaBrokers) > 0 {
		publishers = append(publishers, NewKafkaPublisher(d.KafkaBrokers, d.KafkaTopic, log))
	}
	if d.Redis != nil && d.RedisStream != "" {
		publishers = append(publishers, NewRedisPublisher(d.Redis, d.RedisStream, log))
	}
	return publishers
}

// EventPublisher fans point events out to every configured publisher
type EventPublisher struct {
	publishers []Publisher
	log        logger.Logger
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(publishers []Publisher, log logger.Logger) *EventPublisher {
	return &EventPublisher{
		publishers: publishers,
		log:        log,
	}
}

// PublishPointEvent builds an event from a committed mutation and publishes it.
// It fails only if every publisher failed.
func (p *EventPublisher) PublishPointEvent(ctx context.Context, kind models.TransactionType, amount int64, snapshot *models.UserPoint) error {
	if snapshot == nil {
		return fmt.Errorf("snapshot cannot be nil")
	}
	if len(p.publishers) == 0 {
		return nil
	}

	event := &PointEvent{
		ID:           uuid.New(),
		Type:         kind,
		UserID:       snapshot.ID,
		Amount:       amount,
		Balance:      snapshot.Point,
		UpdateMillis: snapshot.UpdateMillis,
		Timestamp:    time.Now().UTC(),
	}

	var lastErr error
	successCount := 0

	for i, publisher := range p.publishers {
		if err := publisher.PublishEvent(ctx, event); err != nil {
			p.log.Error("failed to publish point event",
				zap.Int("publisher_index", i),
				zap.String("event_id", event.ID.String()),
				zap.Uint64("user_id", event.UserID),
				zap.Error(err),
			)
			lastErr = err
		} else {
			successCount++
		}
	}

	p.log.Debug("published point event",
		zap.String("event_id", event.ID.String()),
		zap.String("type", string(event.Type)),
		zap.Uint64("user_id", event.UserID),
		zap.Int("publishers_success", successCount),
		zap.Int("publishers_total", len(p.publishers)),
	)

	if successCount == 0 && lastErr != nil {
		return fmt.Errorf("all publishers failed, last error: %w", lastErr)
	}
	return nil
}

// Close closes publishers that hold connections.
func (p *EventPublisher) Close() error {
	var firstErr error
	for _, publisher := range p.publishers {
		if c, ok := publisher.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// KafkaPublisher implements Publisher for Apache Kafka
type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
	log    logger.Logger
}

// NewKafkaPublisher creates a new Kafka publisher
func NewKafkaPublisher(brokers []string, topic string, log logger.Logger) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr: kafka.TCP(brokers...),
			// Hashing on the user id keeps one user's events in one partition
			Balancer:     &kafka.Hash{},
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			MaxAttempts:  3,
			WriteTimeout: time.Second,
		},
		topic: topic,
		log:   log,
	}
}

// PublishEvent publishes an event to Kafka
func (k *KafkaPublisher) PublishEvent(ctx context.Context, event *PointEvent) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	k.log.Debug("publishing event to kafka",
		zap.String("topic", k.topic),
		zap.Int("event_size", len(eventData)),
	)

	msg := kafka.Message{
		Topic: k.topic,
		Key:   []byte(strconv.FormatUint(event.UserID, 10)),
		Value: eventData,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
			{Key: "event-id", Value: []byte(event.ID.String())},
		},
	}

	return k.writer.WriteMessages(ctx, msg)
}

// Close flushes and closes the writer
func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}

// RedisPublisher implements Publisher for Redis Streams
type RedisPublisher struct {
	client redis.UniversalClient
	stream string
	log    logger.Logger
}

// NewRedisPublisher creates a new Redis stream publisher on an existing client
func NewRedisPublisher(client redis.UniversalClient, stream string, log logger.Logger) *RedisPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisPublisher{
		client: client,
		stream: stream,
		log:    log,
	}
}

// PublishEvent appends the event to the publisher's stream
func (r *RedisPublisher) PublishEvent(ctx context.Context, event *PointEvent) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{
			"event_id": event.ID.String(),
			"type":     string(event.Type),
			"user_id":  event.UserID,
			"data":     eventData,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish event to redis stream: %w", err)
	}
	return nil
}
