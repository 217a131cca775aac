package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-camp-tickets/internal/logger"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer MessageWriter
	topic  string
	log    *logger.Logger
}

// NewProducer builds an asynchronous writer: WriteMessages returns as soon
// as the messages are buffered and delivery errors are only logged.
func NewProducer(brokers []string, topic string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		Async:                  true,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error("KAFKA", fmt.Sprintf("Failed to deliver %d message(s) to %s: %v", len(messages), topic, err))
			}
		},
	}
	return &Producer{Writer: writer, topic: topic, log: log}
}

// NewProducerWithWriter wraps an existing writer.
func NewProducerWithWriter(w MessageWriter, topic string, log *logger.Logger) *Producer {
	return &Producer{Writer: w, topic: topic, log: log}
}

// PublishJSON streams v as JSON under key.
func (p *Producer) PublishJSON(ctx context.Context, key string, v interface{}) error {
	msgBytes, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	if err := p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: msgBytes,
	}); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.topic, err)
	}

	p.log.LogKafka("PUBLISH", p.topic, fmt.Sprintf("key=%s bytes=%d", key, len(msgBytes)))
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
