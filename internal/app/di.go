// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/allisson/lottery/internal/broker"
	"github.com/allisson/lottery/internal/cache"
	"github.com/allisson/lottery/internal/config"
	"github.com/allisson/lottery/internal/database"
	"github.com/allisson/lottery/internal/metrics"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// ctx lives until Shutdown and bounds background helpers created by the container.
	ctx    context.Context
	cancel context.CancelFunc

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	statusCache     cache.Cache
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	// Managers
	txManager database.TxManager

	// Broker
	producer           broker.Producer
	consumer           broker.Consumer
	deadLetterProducer broker.Producer
	deadLetterSink     broker.DeadLetterSink

	// Lottery components, see di_lottery.go
	lotteryComponents

	// Initialization flags and mutex for thread-safety
	mu                  sync.Mutex
	loggerInit          sync.Once
	dbInit              sync.Once
	txManagerInit       sync.Once
	statusCacheInit     sync.Once
	metricsProviderInit sync.Once
	businessMetricsInit sync.Once
	producerInit        sync.Once
	consumerInit        sync.Once
	deadLetterSinkInit  sync.Once
	initErrors          map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	ctx, cancel := context.WithCancel(context.Background())
	return &Container{
		config:     cfg,
		ctx:        ctx,
		cancel:     cancel,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	var err error
	c.dbInit.Do(func() {
		c.db, err = c.initDB()
		if err != nil {
			c.initErrors["db"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
// It requires a database connection to be initialized first.
func (c *Container) TxManager() (database.TxManager, error) {
	var err error
	c.txManagerInit.Do(func() {
		c.txManager, err = c.initTxManager()
		if err != nil {
			c.initErrors["txManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// StatusCache returns the Redis-backed status cache.
func (c *Container) StatusCache() (cache.Cache, error) {
	var err error
	c.statusCacheInit.Do(func() {
		c.statusCache, err = c.initStatusCache()
		if err != nil {
			c.initErrors["statusCache"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["statusCache"]; exists {
		return nil, storedErr
	}
	return c.statusCache, nil
}

// MetricsProvider returns the OpenTelemetry provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		c.metricsProvider, err = c.initMetricsProvider()
		if err != nil {
			c.initErrors["metricsProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the pipeline metrics recorder. It is a no-op when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		c.businessMetrics, err = c.initBusinessMetrics()
		if err != nil {
			c.initErrors["businessMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// Producer returns the broker producer used by intake.
func (c *Container) Producer() (broker.Producer, error) {
	var err error
	c.producerInit.Do(func() {
		c.producer, err = c.initProducer()
		if err != nil {
			c.initErrors["producer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["producer"]; exists {
		return nil, storedErr
	}
	return c.producer, nil
}

// Consumer returns the broker consumer used by ingestion.
func (c *Container) Consumer() (broker.Consumer, error) {
	var err error
	c.consumerInit.Do(func() {
		c.consumer, err = c.initConsumer()
		if err != nil {
			c.initErrors["consumer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["consumer"]; exists {
		return nil, storedErr
	}
	return c.consumer, nil
}

// DeadLetterSink returns where ingestion sends payloads that can never be stored.
func (c *Container) DeadLetterSink() (broker.DeadLetterSink, error) {
	var err error
	c.deadLetterSinkInit.Do(func() {
		c.deadLetterSink, err = c.initDeadLetterSink()
		if err != nil {
			c.initErrors["deadLetterSink"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["deadLetterSink"]; exists {
		return nil, storedErr
	}
	return c.deadLetterSink, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancel()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if c.consumer != nil {
		if err := c.consumer.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("consumer close: %w", err))
		}
	}

	if c.producer != nil {
		if err := c.producer.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("producer close: %w", err))
		}
	}

	if c.deadLetterProducer != nil {
		if err := c.deadLetterProducer.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("dead letter producer close: %w", err))
		}
	}

	if c.statusCache != nil {
		if err := c.statusCache.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("status cache close: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(shutdownErrors...))
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initTxManager creates the transaction manager using the database connection.
func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	// Claims lock rows with SKIP LOCKED; read committed avoids MySQL gap locks on the pending index.
	return database.NewTxManager(db, database.WithIsolation(sql.LevelReadCommitted)), nil
}

// initStatusCache connects to Redis using RedisURL.
func (c *Container) initStatusCache() (cache.Cache, error) {
	statusCache, err := cache.NewRedisCache(c.config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create status cache: %w", err)
	}
	return statusCache, nil
}

// initMetricsProvider creates the OpenTelemetry provider backed by the Prometheus exporter.
// It returns nil, nil when metrics are disabled.
func (c *Container) initMetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}

	provider, err := metrics.NewProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics provider: %w", err)
	}
	return provider, nil
}

// initBusinessMetrics creates the pipeline instruments, or a no-op recorder when
// metrics are disabled.
func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for business metrics: %w", err)
	}
	if provider == nil {
		return metrics.NewNoOpBusinessMetrics(), nil
	}

	businessMetrics, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}
	return businessMetrics, nil
}

// brokerConfig maps the application configuration onto the broker settings.
func (c *Container) brokerConfig() broker.Config {
	return broker.Config{
		Driver: c.config.BrokerDriver,
		Kafka: broker.KafkaConfig{
			Brokers: c.config.KafkaBrokers,
			Topic:   c.config.KafkaTopic,
			GroupID: c.config.KafkaGroupID,
		},
		PubSubTopicURL:        c.config.PubSubTopicURL,
		PubSubSubscriptionURL: c.config.PubSubSubscriptionURL,
	}
}

// initProducer opens the producer for the submission topic.
func (c *Container) initProducer() (broker.Producer, error) {
	producer, err := broker.OpenProducer(c.ctx, c.brokerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open broker producer: %w", err)
	}
	return producer, nil
}

// initConsumer opens the consumer for the submission topic.
func (c *Container) initConsumer() (broker.Consumer, error) {
	if c.config.BrokerDriver == broker.DriverPubSub {
		// mem:// subscriptions attach to a topic that must already be open.
		if _, err := c.Producer(); err != nil {
			return nil, fmt.Errorf("failed to get broker producer for consumer: %w", err)
		}
	}

	consumer, err := broker.OpenConsumer(c.ctx, c.brokerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open broker consumer: %w", err)
	}
	return consumer, nil
}

// initDeadLetterSink returns a producer-backed sink when a dead-letter topic is
// configured and a log-only sink otherwise.
func (c *Container) initDeadLetterSink() (broker.DeadLetterSink, error) {
	logger := c.Logger()

	if c.config.BrokerDeadLetterTopic == "" {
		return broker.NewLogDeadLetterSink(logger), nil
	}

	producer, err := broker.OpenDeadLetterProducer(c.ctx, c.brokerConfig(), c.config.BrokerDeadLetterTopic)
	if err != nil {
		return nil, fmt.Errorf("failed to open dead letter producer: %w", err)
	}
	c.deadLetterProducer = producer

	return broker.NewProducerDeadLetterSink(producer, logger), nil
}
