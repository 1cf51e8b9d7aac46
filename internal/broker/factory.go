package broker

import (
	"context"
	"fmt"
)

// Driver names accepted by Open*.
const (
	DriverKafka  = "kafka"
	DriverPubSub = "pubsub"
)

// Config selects and configures a broker driver.
type Config struct {
	Driver                string
	Kafka                 KafkaConfig
	PubSubTopicURL        string
	PubSubSubscriptionURL string
}

// OpenConsumer returns the consumer for cfg.Driver.
func OpenConsumer(ctx context.Context, cfg Config) (Consumer, error) {
	switch cfg.Driver {
	case DriverKafka:
		return NewKafkaConsumer(cfg.Kafka)
	case DriverPubSub:
		return OpenPubSubConsumer(ctx, cfg.PubSubSubscriptionURL)
	default:
		return nil, fmt.Errorf("unsupported broker driver: %s", cfg.Driver)
	}
}

// OpenProducer returns the producer for cfg.Driver.
func OpenProducer(ctx context.Context, cfg Config) (Producer, error) {
	switch cfg.Driver {
	case DriverKafka:
		return NewKafkaProducer(cfg.Kafka)
	case DriverPubSub:
		return OpenPubSubProducer(ctx, cfg.PubSubTopicURL)
	default:
		return nil, fmt.Errorf("unsupported broker driver: %s", cfg.Driver)
	}
}

// OpenDeadLetterProducer returns a producer writing to topic. For the kafka driver
// topic is a topic name; for pubsub it is a topic URL.
func OpenDeadLetterProducer(ctx context.Context, cfg Config, topic string) (Producer, error) {
	switch cfg.Driver {
	case DriverKafka:
		kcfg := cfg.Kafka
		kcfg.Topic = topic
		return NewKafkaProducer(kcfg)
	case DriverPubSub:
		return OpenPubSubProducer(ctx, topic)
	default:
		return nil, fmt.Errorf("unsupported broker driver: %s", cfg.Driver)
	}
}
