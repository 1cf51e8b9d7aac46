package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/lottery/internal/broker"
)

// MockProducer is a mock implementation of broker.Producer.
type MockProducer struct {
	mock.Mock
}

// Publish mocks the Publish method of broker.Producer.
func (m *MockProducer) Publish(ctx context.Context, key, value []byte) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

// PublishMessage mocks the PublishMessage method of broker.Producer.
func (m *MockProducer) PublishMessage(ctx context.Context, msg broker.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// Close mocks the Close method of broker.Producer.
func (m *MockProducer) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockDeadLetterSink is a mock implementation of broker.DeadLetterSink.
type MockDeadLetterSink struct {
	mock.Mock
}

// Send mocks the Send method of broker.DeadLetterSink.
func (m *MockDeadLetterSink) Send(ctx context.Context, msg broker.Message, reason error) error {
	args := m.Called(ctx, msg, reason)
	return args.Error(0)
}

const pollInterval = 5 * time.Millisecond

// FakeConsumer replays a fixed sequence of messages and records commits. Fetch
// blocks once the sequence is exhausted until ctx is done.
type FakeConsumer struct {
	mu        sync.Mutex
	messages  []broker.Message
	next      int
	committed []broker.Message
	commitErr error
}

// NewFakeConsumer returns a consumer that serves msgs in order.
func NewFakeConsumer(msgs ...broker.Message) *FakeConsumer {
	return &FakeConsumer{messages: msgs}
}

// Push appends messages to be served by later Fetch calls.
func (c *FakeConsumer) Push(msgs ...broker.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msgs...)
}

// FailCommits makes Commit return err until it is called again with nil.
func (c *FakeConsumer) FailCommits(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commitErr = err
}

// Fetch returns the next queued message, waiting for Push or ctx.
func (c *FakeConsumer) Fetch(ctx context.Context) (broker.Message, error) {
	for {
		c.mu.Lock()
		if c.next < len(c.messages) {
			msg := c.messages[c.next]
			c.next++
			c.mu.Unlock()
			return msg, nil
		}
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return broker.Message{}, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Commit records msgs unless FailCommits set an error.
func (c *FakeConsumer) Commit(ctx context.Context, msgs ...broker.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.commitErr != nil {
		return c.commitErr
	}
	c.committed = append(c.committed, msgs...)
	return nil
}

// Close is a no-op.
func (c *FakeConsumer) Close() error {
	return nil
}

// Committed returns a copy of every committed message in commit order.
func (c *FakeConsumer) Committed() []broker.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]broker.Message(nil), c.committed...)
}

// Fetched returns how many messages have been handed out.
func (c *FakeConsumer) Fetched() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}
