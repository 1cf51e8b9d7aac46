package broker

import (
	"context"
	"log/slog"
	"maps"
	"strconv"
)

// Headers set on every dead-lettered message.
const (
	HeaderReason          = "dead-letter-reason"
	HeaderSourceTopic     = "dead-letter-source-topic"
	HeaderSourcePartition = "dead-letter-source-partition"
	HeaderSourceOffset    = "dead-letter-source-offset"
)

// DeadLetterSink receives messages that can never be stored.
type DeadLetterSink interface {
	// Send hands off msg together with the reason it was rejected. An error means
	// the message was not delivered; the caller logs it and moves on.
	Send(ctx context.Context, msg Message, reason error) error
}

// LogDeadLetterSink only records the rejected message.
type LogDeadLetterSink struct {
	logger *slog.Logger
}

// NewLogDeadLetterSink creates a sink that writes one warning per rejected message
// and never fails.
func NewLogDeadLetterSink(logger *slog.Logger) *LogDeadLetterSink {
	return &LogDeadLetterSink{logger: logger}
}

// Send logs the source coordinates, key and reason of msg.
func (s *LogDeadLetterSink) Send(ctx context.Context, msg Message, reason error) error {
	s.logger.Warn("message dead-lettered",
		slog.String("topic", msg.Topic),
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
		slog.String("key", string(msg.Key)),
		slog.Any("reason", reason),
	)
	return nil
}

// ProducerDeadLetterSink republishes rejected messages, keyed as the original.
type ProducerDeadLetterSink struct {
	producer Producer
	logger   *slog.Logger
}

// NewProducerDeadLetterSink creates a sink that publishes to producer, which is
// expected to write to a dedicated dead-letter topic.
func NewProducerDeadLetterSink(producer Producer, logger *slog.Logger) *ProducerDeadLetterSink {
	return &ProducerDeadLetterSink{producer: producer, logger: logger}
}

// Send republishes the key and value of msg. The original headers are kept and the
// rejection reason plus the source topic, partition and offset are added.
func (s *ProducerDeadLetterSink) Send(ctx context.Context, msg Message, reason error) error {
	if err := s.producer.PublishMessage(ctx, Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: deadLetterHeaders(msg, reason),
	}); err != nil {
		return err
	}
	s.logger.Warn("message dead-lettered",
		slog.String("topic", msg.Topic),
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
		slog.Any("reason", reason),
	)
	return nil
}

// deadLetterHeaders copies the source headers and adds the rejection details.
func deadLetterHeaders(msg Message, reason error) map[string]string {
	headers := make(map[string]string, len(msg.Headers)+4)
	maps.Copy(headers, msg.Headers)
	if reason != nil {
		headers[HeaderReason] = reason.Error()
	}
	headers[HeaderSourceTopic] = msg.Topic
	headers[HeaderSourcePartition] = strconv.Itoa(msg.Partition)
	headers[HeaderSourceOffset] = strconv.FormatInt(msg.Offset, 10)
	return headers
}
