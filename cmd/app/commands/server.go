package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/allisson/lottery/internal/app"
	"github.com/allisson/lottery/internal/config"
)

// RunServer starts the API and metrics servers. Unless apiOnly is set, the
// ingestion and claim-and-process pipelines run in the same process. Blocks until
// SIGINT/SIGTERM or a fatal error.
func RunServer(ctx context.Context, version string, apiOnly bool) error {
	// Load configuration
	cfg := config.Load()

	// Set Gin mode
	gin.SetMode(cfg.GetGinMode())

	// Create DI container
	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting server",
		slog.String("version", version),
		slog.Bool("api_only", apiOnly),
	)

	defer closeContainer(container, logger)

	server, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	services := []Service{server}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}
	if metricsServer != nil {
		services = append(services, metricsServer)
	}

	// Pipelines share the process unless running API only
	var workers []Worker
	if !apiOnly {
		workers, err = pipelineWorkers(container)
		if err != nil {
			return err
		}
	}

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return RunUntilDone(ctx, logger, services, workers)
}

// RunWorker runs only the ingestion and claim-and-process pipelines, plus the
// metrics server when enabled.
func RunWorker(ctx context.Context, version string) error {
	cfg := config.Load()

	// Create DI container
	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting worker", slog.String("version", version))

	defer closeContainer(container, logger)

	var services []Service
	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}
	if metricsServer != nil {
		services = append(services, metricsServer)
	}

	workers, err := pipelineWorkers(container)
	if err != nil {
		return err
	}

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return RunUntilDone(ctx, logger, services, workers)
}

// pipelineWorkers returns the ingestion and processing loops run next to the servers.
func pipelineWorkers(container *app.Container) ([]Worker, error) {
	ingestUseCase, err := container.IngestUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ingestion: %w", err)
	}

	processorUseCase, err := container.ProcessorUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize processor: %w", err)
	}

	return []Worker{ingestUseCase.Run, processorUseCase.Run}, nil
}
