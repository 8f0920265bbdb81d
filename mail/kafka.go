package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// DefaultTopic is the topic the mail worker consumes.
const DefaultTopic = "mail"

// MessageWriter is the subset of *kafka.Writer used by KafkaSender.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSender publishes messages as JSON to a Kafka topic.
type KafkaSender struct {
	writer  MessageWriter
	timeout time.Duration
}

// NewKafkaWriter builds a writer for brokers and topic.
func NewKafkaWriter(brokers []string, topic string) (*kafka.Writer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("mail: at least one kafka broker is required")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}, nil
}

// NewKafkaSender wraps w. Each publish is bounded by timeout.
func NewKafkaSender(w MessageWriter, timeout time.Duration) *KafkaSender {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KafkaSender{writer: w, timeout: timeout}
}

func (s *KafkaSender) Send(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}
	key := ""
	if len(msg.Recipients) > 0 {
		key = msg.Recipients[0]
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: data}); err != nil {
		return fmt.Errorf("kafka: publish failed: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (s *KafkaSender) Close() error {
	return s.writer.Close()
}
