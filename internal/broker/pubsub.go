package broker

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"gocloud.dev/gcerrors"
	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub"
)

const (
	keyMetadata     = "key"
	shutdownTimeout = 5 * time.Second
)

// PubSubConsumer adapts a gocloud.dev subscription. Commit acks the messages.
type PubSubConsumer struct {
	sub    *pubsub.Subscription
	topic  string
	mu     sync.Mutex
	offset int64
}

// OpenPubSubConsumer opens the subscription at url (e.g. mem://lottery-requests).
func OpenPubSubConsumer(ctx context.Context, url string) (*PubSubConsumer, error) {
	sub, err := pubsub.OpenSubscription(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("pubsub: failed to open subscription %q: %w", url, err)
	}
	return NewPubSubConsumer(sub, url), nil
}

// NewPubSubConsumer wraps an already opened subscription.
func NewPubSubConsumer(sub *pubsub.Subscription, topic string) *PubSubConsumer {
	return &PubSubConsumer{sub: sub, topic: topic}
}

// Fetch assigns a process-local sequence number as the offset.
func (c *PubSubConsumer) Fetch(ctx context.Context) (Message, error) {
	m, err := c.sub.Receive(ctx)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.FailedPrecondition {
			return Message{}, ErrClosed
		}
		return Message{}, err
	}

	c.mu.Lock()
	offset := c.offset
	c.offset++
	c.mu.Unlock()

	var key []byte
	var headers map[string]string
	for k, v := range m.Metadata {
		if k == keyMetadata {
			key = []byte(v)
			continue
		}
		if headers == nil {
			headers = make(map[string]string, len(m.Metadata))
		}
		headers[k] = v
	}

	return Message{
		Topic:   c.topic,
		Offset:  offset,
		Key:     key,
		Value:   m.Body,
		Time:    time.Now().UTC(),
		Headers: headers,
		raw:     m,
	}, nil
}

// Commit acks msgs. A message fetched by another consumer is rejected.
func (c *PubSubConsumer) Commit(ctx context.Context, msgs ...Message) error {
	for _, m := range msgs {
		pm, ok := m.raw.(*pubsub.Message)
		if !ok {
			return fmt.Errorf("pubsub: message %d was not fetched by this consumer", m.Offset)
		}
		pm.Ack()
	}
	return nil
}

// Close shuts the subscription down, waiting up to five seconds for pending acks.
func (c *PubSubConsumer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return c.sub.Shutdown(ctx)
}

// PubSubProducer adapts a gocloud.dev topic. The message key travels as metadata.
type PubSubProducer struct {
	topic *pubsub.Topic
}

// OpenPubSubProducer opens the topic at url.
func OpenPubSubProducer(ctx context.Context, url string) (*PubSubProducer, error) {
	topic, err := pubsub.OpenTopic(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("pubsub: failed to open topic %q: %w", url, err)
	}
	return NewPubSubProducer(topic), nil
}

// NewPubSubProducer wraps an already opened topic.
func NewPubSubProducer(topic *pubsub.Topic) *PubSubProducer {
	return &PubSubProducer{topic: topic}
}

// Publish sends value with key stored under the "key" metadata entry.
func (p *PubSubProducer) Publish(ctx context.Context, key, value []byte) error {
	return p.PublishMessage(ctx, Message{Key: key, Value: value})
}

// PublishMessage sends msg with its headers as metadata. A "key" header is
// overwritten by msg.Key.
func (p *PubSubProducer) PublishMessage(ctx context.Context, msg Message) error {
	pm := &pubsub.Message{Body: msg.Value}
	if len(msg.Key) > 0 || len(msg.Headers) > 0 {
		pm.Metadata = make(map[string]string, len(msg.Headers)+1)
		maps.Copy(pm.Metadata, msg.Headers)
		if len(msg.Key) > 0 {
			pm.Metadata[keyMetadata] = string(msg.Key)
		} else {
			delete(pm.Metadata, keyMetadata)
		}
	}
	if err := p.topic.Send(ctx, pm); err != nil {
		return fmt.Errorf("pubsub: publish failed: %w", err)
	}
	return nil
}

// Close shuts the topic down, waiting up to five seconds for in-flight sends.
func (p *PubSubProducer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return p.topic.Shutdown(ctx)
}
