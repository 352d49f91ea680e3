package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

// AccidentEvent is the message published for each alert.
type AccidentEvent struct {
	Email      string    `json:"email"`
	Severity   string    `json:"severity"`
	Impact     int       `json:"impact"`
	Vehicles   int       `json:"vehicles"`
	Clip       string    `json:"clip"`
	DetectedAt time.Time `json:"detected_at"`
}

type KafkaConfig struct {
	BootstrapServers string
	Topic            string
}

// producer is the part of *kafka.Producer the publisher uses.
type producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

// KafkaPublisher publishes alerts as JSON to a topic. Delivery is
// asynchronous; failed deliveries are logged.
type KafkaPublisher struct {
	producer   producer
	topic      string
	deliveries chan kafka.Event
	logger     *zap.Logger
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

func NewKafkaPublisher(cfg KafkaConfig, logger *zap.Logger) (*KafkaPublisher, error) {
	if cfg.BootstrapServers == "" || cfg.Topic == "" {
		return nil, errors.New("kafka bootstrap servers and topic are required")
	}
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.BootstrapServers,
		"acks":               "all",
		"enable.idempotence": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	return newKafkaPublisher(p, cfg.Topic, logger), nil
}

func newKafkaPublisher(p producer, topic string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	kp := &KafkaPublisher{
		producer:   p,
		topic:      topic,
		deliveries: make(chan kafka.Event, 64),
		logger:     logger,
	}
	kp.wg.Add(1)
	go kp.handleDeliveryReports()
	return kp
}

func (kp *KafkaPublisher) handleDeliveryReports() {
	defer kp.wg.Done()
	for e := range kp.deliveries {
		m, ok := e.(*kafka.Message)
		if !ok {
			continue
		}
		if m.TopicPartition.Error != nil {
			kp.logger.Warn("accident event delivery failed", zap.Error(m.TopicPartition.Error))
			continue
		}
		kp.logger.Debug("accident event delivered",
			zap.Int32("partition", m.TopicPartition.Partition),
			zap.String("offset", m.TopicPartition.Offset.String()))
	}
}

func (kp *KafkaPublisher) Notify(ctx context.Context, alert Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(AccidentEvent{
		Email:      alert.Recipient,
		Severity:   alert.Severity,
		Impact:     alert.Impact,
		Vehicles:   alert.Vehicles,
		Clip:       alert.ClipPath,
		DetectedAt: alert.DetectedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to serialize accident event: %w", err)
	}

	return kp.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &kp.topic, Partition: kafka.PartitionAny},
		Key:            []byte(alert.Recipient),
		Value:          payload,
		Headers:        []kafka.Header{{Key: "severity", Value: []byte(alert.Severity)}},
	}, kp.deliveries)
}

// Close flushes pending messages for up to timeout and shuts the producer
// down.
func (kp *KafkaPublisher) Close(timeout time.Duration) {
	kp.closeOnce.Do(func() {
		if remaining := kp.producer.Flush(int(timeout.Milliseconds())); remaining > 0 {
			kp.logger.Warn("accident events still queued after flush", zap.Int("remaining", remaining))
		}
		kp.producer.Close()
		close(kp.deliveries)
		kp.wg.Wait()
	})
}
