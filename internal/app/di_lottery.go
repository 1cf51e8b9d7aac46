package app

import (
	"fmt"
	"sync"

	internalHTTP "github.com/allisson/lottery/internal/http"
	lotteryHTTP "github.com/allisson/lottery/internal/lottery/http"
	lotteryRepository "github.com/allisson/lottery/internal/lottery/repository"
	lotteryUseCase "github.com/allisson/lottery/internal/lottery/usecase"
)

// lotteryComponents groups the registration pipeline and its servers.
type lotteryComponents struct {
	registrationRepository lotteryUseCase.RegistrationRepository
	campaignRepository     lotteryUseCase.CampaignRepository
	campaignUseCase        lotteryUseCase.CampaignUseCase
	registrationUseCase    lotteryUseCase.RegistrationUseCase
	ingestUseCase          lotteryUseCase.IngestUseCase
	processorUseCase       lotteryUseCase.ProcessorUseCase
	registrationHandler    *lotteryHTTP.RegistrationHandler
	httpServer             *internalHTTP.Server
	metricsServer          *internalHTTP.MetricsServer

	registrationRepositoryInit sync.Once
	campaignRepositoryInit     sync.Once
	campaignUseCaseInit        sync.Once
	registrationUseCaseInit    sync.Once
	ingestUseCaseInit          sync.Once
	processorUseCaseInit       sync.Once
	registrationHandlerInit    sync.Once
	httpServerInit             sync.Once
	metricsServerInit          sync.Once
}

// RegistrationRepository returns the registration store based on database driver.
func (c *Container) RegistrationRepository() (lotteryUseCase.RegistrationRepository, error) {
	var err error
	c.registrationRepositoryInit.Do(func() {
		c.registrationRepository, err = c.initRegistrationRepository()
		if err != nil {
			c.initErrors["registrationRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["registrationRepository"]; exists {
		return nil, storedErr
	}
	return c.registrationRepository, nil
}

// CampaignRepository returns the campaign store based on database driver.
func (c *Container) CampaignRepository() (lotteryUseCase.CampaignRepository, error) {
	var err error
	c.campaignRepositoryInit.Do(func() {
		c.campaignRepository, err = c.initCampaignRepository()
		if err != nil {
			c.initErrors["campaignRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["campaignRepository"]; exists {
		return nil, storedErr
	}
	return c.campaignRepository, nil
}

// CampaignUseCase returns the cached campaign resolver.
func (c *Container) CampaignUseCase() (lotteryUseCase.CampaignUseCase, error) {
	var err error
	c.campaignUseCaseInit.Do(func() {
		c.campaignUseCase, err = c.initCampaignUseCase()
		if err != nil {
			c.initErrors["campaignUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["campaignUseCase"]; exists {
		return nil, storedErr
	}
	return c.campaignUseCase, nil
}

// RegistrationUseCase returns the intake and status use case.
func (c *Container) RegistrationUseCase() (lotteryUseCase.RegistrationUseCase, error) {
	var err error
	c.registrationUseCaseInit.Do(func() {
		c.registrationUseCase, err = c.initRegistrationUseCase()
		if err != nil {
			c.initErrors["registrationUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["registrationUseCase"]; exists {
		return nil, storedErr
	}
	return c.registrationUseCase, nil
}

// IngestUseCase returns the ingestion subsystem.
func (c *Container) IngestUseCase() (lotteryUseCase.IngestUseCase, error) {
	var err error
	c.ingestUseCaseInit.Do(func() {
		c.ingestUseCase, err = c.initIngestUseCase()
		if err != nil {
			c.initErrors["ingestUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["ingestUseCase"]; exists {
		return nil, storedErr
	}
	return c.ingestUseCase, nil
}

// ProcessorUseCase returns the claim-and-process worker.
func (c *Container) ProcessorUseCase() (lotteryUseCase.ProcessorUseCase, error) {
	var err error
	c.processorUseCaseInit.Do(func() {
		c.processorUseCase, err = c.initProcessorUseCase()
		if err != nil {
			c.initErrors["processorUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["processorUseCase"]; exists {
		return nil, storedErr
	}
	return c.processorUseCase, nil
}

// RegistrationHandler returns the HTTP handler for submissions and status lookups.
func (c *Container) RegistrationHandler() (*lotteryHTTP.RegistrationHandler, error) {
	var err error
	c.registrationHandlerInit.Do(func() {
		c.registrationHandler, err = c.initRegistrationHandler()
		if err != nil {
			c.initErrors["registrationHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["registrationHandler"]; exists {
		return nil, storedErr
	}
	return c.registrationHandler, nil
}

// HTTPServer returns the API server with its router configured.
func (c *Container) HTTPServer() (*internalHTTP.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the Prometheus server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*internalHTTP.MetricsServer, error) {
	var err error
	c.metricsServerInit.Do(func() {
		c.metricsServer, err = c.initMetricsServer()
		if err != nil {
			c.initErrors["metricsServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// initRegistrationRepository creates the registration repository for the configured driver.
func (c *Container) initRegistrationRepository() (lotteryUseCase.RegistrationRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for registration repository: %w", err)
	}

	// Select the appropriate repository based on the database driver
	switch c.config.DBDriver {
	case "postgres":
		return lotteryRepository.NewPostgreSQLRegistrationRepository(db), nil
	case "mysql":
		return lotteryRepository.NewMySQLRegistrationRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initCampaignRepository creates the campaign repository for the configured driver.
func (c *Container) initCampaignRepository() (lotteryUseCase.CampaignRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for campaign repository: %w", err)
	}

	// Select the appropriate repository based on the database driver
	switch c.config.DBDriver {
	case "postgres":
		return lotteryRepository.NewPostgreSQLCampaignRepository(db), nil
	case "mysql":
		return lotteryRepository.NewMySQLCampaignRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initCampaignUseCase creates the campaign use case with its local and shared caches.
func (c *Container) initCampaignUseCase() (lotteryUseCase.CampaignUseCase, error) {
	campaignRepository, err := c.CampaignRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign repository for campaign use case: %w", err)
	}

	statusCache, err := c.StatusCache()
	if err != nil {
		return nil, fmt.Errorf("failed to get status cache for campaign use case: %w", err)
	}

	return lotteryUseCase.NewCampaignUseCase(
		campaignRepository,
		statusCache,
		lotteryUseCase.CampaignCacheConfig{
			LocalTTL:   c.config.CampaignLocalCacheTTL,
			DefaultTTL: c.config.CampaignCacheDefaultTTL,
		},
		c.Logger(),
	), nil
}

// initRegistrationUseCase creates the intake use case, wrapped with metrics when enabled.
func (c *Container) initRegistrationUseCase() (lotteryUseCase.RegistrationUseCase, error) {
	registrationRepository, err := c.RegistrationRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get registration repository for registration use case: %w", err)
	}

	campaignUseCase, err := c.CampaignUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign use case for registration use case: %w", err)
	}

	producer, err := c.Producer()
	if err != nil {
		return nil, fmt.Errorf("failed to get producer for registration use case: %w", err)
	}

	statusCache, err := c.StatusCache()
	if err != nil {
		return nil, fmt.Errorf("failed to get status cache for registration use case: %w", err)
	}

	baseUseCase := lotteryUseCase.NewRegistrationUseCase(
		registrationRepository,
		campaignUseCase,
		producer,
		statusCache,
		c.config.StatusTTL,
		c.Logger(),
	)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for registration use case: %w", err)
		}
		return lotteryUseCase.NewRegistrationUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// initIngestUseCase creates the ingestion subsystem with all its dependencies.
func (c *Container) initIngestUseCase() (lotteryUseCase.IngestUseCase, error) {
	consumer, err := c.Consumer()
	if err != nil {
		return nil, fmt.Errorf("failed to get consumer for ingest use case: %w", err)
	}

	registrationRepository, err := c.RegistrationRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get registration repository for ingest use case: %w", err)
	}

	campaignUseCase, err := c.CampaignUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign use case for ingest use case: %w", err)
	}

	// Rejected messages go to the dead-letter topic when one is configured
	deadLetterSink, err := c.DeadLetterSink()
	if err != nil {
		return nil, fmt.Errorf("failed to get dead letter sink for ingest use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for ingest use case: %w", err)
	}

	return lotteryUseCase.NewIngestUseCase(
		consumer,
		registrationRepository,
		campaignUseCase,
		deadLetterSink,
		businessMetrics,
		c.Logger(),
		lotteryUseCase.IngestConfig{
			QueueCapacity: c.config.IngestQueueCapacity,
			BatchSize:     c.config.IngestBatchSize,
			FlushInterval: c.config.IngestFlushInterval,
			RetryDelay:    c.config.IngestRetryDelay,
		},
	), nil
}

// initProcessorUseCase creates the claim-and-process worker with all its dependencies.
func (c *Container) initProcessorUseCase() (lotteryUseCase.ProcessorUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for processor use case: %w", err)
	}

	registrationRepository, err := c.RegistrationRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get registration repository for processor use case: %w", err)
	}

	statusCache, err := c.StatusCache()
	if err != nil {
		return nil, fmt.Errorf("failed to get status cache for processor use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for processor use case: %w", err)
	}

	return lotteryUseCase.NewProcessorUseCase(
		txManager,
		registrationRepository,
		statusCache,
		// Simulated external decision followed by a fair coin
		lotteryUseCase.NewDelayDecisionStep(c.config.ProcessorDecisionDelay),
		lotteryUseCase.FairCoin,
		businessMetrics,
		c.Logger(),
		lotteryUseCase.ProcessorConfig{
			CampaignID:     c.config.ProcessorCampaignID,
			BatchSize:      c.config.ProcessorBatchSize,
			PollInterval:   c.config.ProcessorPollInterval,
			WinnerLimit:    c.config.ProcessorWinnerLimit,
			MaxParallelism: c.config.ProcessorMaxParallelism,
			CounterKey:     c.config.ProcessorCounterKey,
			StuckThreshold: c.config.ProcessorStuckThreshold,
			ErrorDelay:     c.config.ProcessorErrorDelay,
			StatusTTL:      c.config.StatusTTL,
		},
	), nil
}

// initRegistrationHandler creates the HTTP handler for the lottery routes.
func (c *Container) initRegistrationHandler() (*lotteryHTTP.RegistrationHandler, error) {
	registrationUseCase, err := c.RegistrationUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get registration use case for registration handler: %w", err)
	}
	return lotteryHTTP.NewRegistrationHandler(registrationUseCase, c.Logger()), nil
}

// initHTTPServer creates the API server with all its dependencies.
func (c *Container) initHTTPServer() (*internalHTTP.Server, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	statusCache, err := c.StatusCache()
	if err != nil {
		return nil, fmt.Errorf("failed to get status cache for http server: %w", err)
	}

	registrationHandler, err := c.RegistrationHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get registration handler for http server: %w", err)
	}

	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	// Create and configure the server; the database and cache back the readiness check
	server := internalHTTP.NewServer(db, statusCache, c.config.ServerHost, c.config.ServerPort, c.Logger())
	server.SetupRouter(c.ctx, c.config, registrationHandler, metricsProvider)

	return server, nil
}

// initMetricsServer creates the server exposing /metrics and /health on MetricsPort.
func (c *Container) initMetricsServer() (*internalHTTP.MetricsServer, error) {
	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}
	// No metrics server when metrics are disabled
	if metricsProvider == nil {
		return nil, nil
	}

	return internalHTTP.NewMetricsServer(
		c.config.ServerHost,
		c.config.MetricsPort,
		c.Logger(),
		metricsProvider,
	), nil
}
