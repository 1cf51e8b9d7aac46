// Package broker abstracts the message log the registration pipeline consumes from
// and publishes to. Kafka is the production driver; gocloud.dev pubsub backs the
// in-memory driver used for local runs and tests.
package broker

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by Fetch after the consumer has been closed.
var ErrClosed = errors.New("broker: closed")

// Message is one record read from the log.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Time      time.Time
	// Headers are Kafka record headers or pubsub metadata. The pubsub key entry is
	// surfaced as Key, not here.
	Headers map[string]string

	// raw holds the driver-specific message needed to commit it.
	raw any
}

// Consumer reads messages with manual offset management. A message is only
// considered consumed once Commit returns nil for it.
type Consumer interface {
	// Fetch blocks until the next message is available. It returns ErrClosed once
	// the consumer has been closed.
	Fetch(ctx context.Context) (Message, error)
	// Commit marks msgs as consumed so they are not redelivered.
	Commit(ctx context.Context, msgs ...Message) error
	// Close releases the underlying reader or subscription.
	Close() error
}

// Producer appends messages to the log.
type Producer interface {
	// Publish appends a keyed message without headers.
	Publish(ctx context.Context, key, value []byte) error
	// PublishMessage appends msg with its Key, Value and Headers. Topic, Partition
	// and Offset are ignored; the producer decides where the message lands.
	PublishMessage(ctx context.Context, msg Message) error
	// Close flushes pending writes and releases the writer or topic.
	Close() error
}
