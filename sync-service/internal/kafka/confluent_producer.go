package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	pkglog "github.com/JimmyPiedrahita/netflis/pkg/log"
)

// ConfluentProducer implements RoomEventProducer using confluent-kafka-go.
type ConfluentProducer struct {
	producer *kafka.Producer
	topic    string
	doneCh   chan struct{}
}

// NewConfluentProducer creates the topic if needed and starts a producer.
func NewConfluentProducer(brokers, topic string, partitions int) (*ConfluentProducer, error) {
	if err := ensureTopic(brokers, topic, partitions); err != nil {
		l := pkglog.L()
		l.Warn().Err(err).Str("topic", topic).Msg("failed to ensure topic, may already exist")
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"acks":              "1",
		"linger.ms":         20,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	cp := &ConfluentProducer{
		producer: p,
		topic:    topic,
		doneCh:   make(chan struct{}),
	}
	go cp.deliveryReports()

	return cp, nil
}

func ensureTopic(brokers, topic string, partitions int) error {
	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{"bootstrap.servers": brokers})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	}})
	if err != nil {
		return err
	}
	for _, result := range results {
		if code := result.Error.Code(); code != kafka.ErrNoError && code != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("failed to create topic %s: %v", result.Topic, result.Error)
		}
	}
	return nil
}

func (cp *ConfluentProducer) deliveryReports() {
	l := pkglog.L()
	for e := range cp.producer.Events() {
		if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			l.Error().Err(m.TopicPartition.Error).Str(pkglog.FieldRoomID, string(m.Key)).Msg("room event delivery failed")
		}
	}
	close(cp.doneCh)
}

// produce keys by room id so a room's events stay ordered on one partition.
func (cp *ConfluentProducer) produce(event RoomEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal room event: %w", err)
	}

	err = cp.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &cp.topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.RoomID),
		Value:          value,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to produce room event: %w", err)
	}
	return nil
}

func (cp *ConfluentProducer) ProduceRoomCreated(ctx context.Context, roomID string) error {
	return cp.produce(RoomEvent{
		Type:      EventRoomCreated,
		RoomID:    roomID,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (cp *ConfluentProducer) ProduceRoomDestroyed(ctx context.Context, roomID string, lifetime time.Duration) error {
	return cp.produce(RoomEvent{
		Type:       EventRoomDestroyed,
		RoomID:     roomID,
		LifetimeMs: lifetime.Milliseconds(),
		Timestamp:  time.Now().UnixMilli(),
	})
}

// Close flushes pending events and stops the producer.
func (cp *ConfluentProducer) Close() error {
	cp.producer.Flush(5000)
	cp.producer.Close()
	<-cp.doneCh
	return nil
}
