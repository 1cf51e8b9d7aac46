package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig holds the connection settings shared by the consumer and producer.
type KafkaConfig struct {
	// Brokers lists the bootstrap addresses, host:port.
	Brokers []string
	// Topic is read by the consumer and written by the producer.
	Topic string
	// GroupID names the consumer group. The producer ignores it.
	GroupID string
}

// KafkaConsumer reads from a consumer group without auto-commit.
type KafkaConsumer struct {
	reader *kafka.Reader
}

// NewKafkaConsumer joins GroupID on Topic. New groups start at the earliest offset.
func NewKafkaConsumer(cfg KafkaConfig) (*KafkaConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.Topic == "" || cfg.GroupID == "" {
		return nil, errors.New("kafka: topic and group id are required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		StartOffset: kafka.FirstOffset,
		// Commits are synchronous and only happen through Commit.
		CommitInterval: 0,
	})

	return &KafkaConsumer{reader: reader}, nil
}

// Fetch blocks until a message is available or ctx is done.
func (c *KafkaConsumer) Fetch(ctx context.Context) (Message, error) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Message{}, ErrClosed
		}
		return Message{}, err
	}

	return Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Time:      m.Time,
		Headers:   fromKafkaHeaders(m.Headers),
		raw:       m,
	}, nil
}

// Commit stores the offsets of msgs for the group.
func (c *KafkaConsumer) Commit(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}

	kmsgs := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		km, ok := m.raw.(kafka.Message)
		if !ok {
			return fmt.Errorf("kafka: message %s/%d/%d was not fetched by this consumer", m.Topic, m.Partition, m.Offset)
		}
		kmsgs = append(kmsgs, km)
	}

	if err := c.reader.CommitMessages(ctx, kmsgs...); err != nil {
		return fmt.Errorf("kafka: commit failed: %w", err)
	}
	return nil
}

// Close leaves the consumer group and stops the reader. Pending Fetch calls
// return ErrClosed.
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

// KafkaProducer writes keyed messages with full acknowledgement.
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer returns a producer that hashes keys to partitions so that all
// messages for a request id land on the same partition.
func NewKafkaProducer(cfg KafkaConfig) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: topic is required")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}

	return &KafkaProducer{writer: writer}, nil
}

// Publish writes one keyed message and waits for every in-sync replica to
// acknowledge it.
func (p *KafkaProducer) Publish(ctx context.Context, key, value []byte) error {
	return p.PublishMessage(ctx, Message{Key: key, Value: value})
}

// PublishMessage writes msg with its headers as Kafka record headers.
func (p *KafkaProducer) PublishMessage(ctx context.Context, msg Message) error {
	km := kafka.Message{Key: msg.Key, Value: msg.Value, Headers: toKafkaHeaders(msg.Headers)}
	if err := p.writer.WriteMessages(ctx, km); err != nil {
		return fmt.Errorf("kafka: publish failed: %w", err)
	}
	return nil
}

// Close flushes buffered messages and closes the writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// toKafkaHeaders converts message headers to Kafka record headers.
func toKafkaHeaders(headers map[string]string) []kafka.Header {
	if len(headers) == 0 {
		return nil
	}
	out := make([]kafka.Header, 0, len(headers))
	for k, v := range headers {
		out = append(out, kafka.Header{Key: k, Value: []byte(v)})
	}
	// Map order is random; keep the record stable.
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// fromKafkaHeaders flattens Kafka record headers. A repeated key keeps its last value.
func fromKafkaHeaders(headers []kafka.Header) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		out[h.Key] = string(h.Value)
	}
	return out
}
