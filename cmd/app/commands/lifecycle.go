package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds server shutdown and covers the ingestion final flush.
const shutdownTimeout = 30 * time.Second

// Service is a server with an explicit shutdown.
type Service interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Worker runs until ctx is done.
type Worker func(ctx context.Context) error

// RunUntilDone runs services and workers together. It returns when ctx is done or
// any of them fails, after shutting the services down and waiting for the workers.
func RunUntilDone(ctx context.Context, logger *slog.Logger, services []Service, workers []Worker) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, service := range services {
		g.Go(func() error {
			return service.Start(gctx)
		})
	}

	for _, worker := range workers {
		g.Go(func() error {
			return worker(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			logger.Info("shutdown signal received")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var shutdownErrors []error
		for _, service := range services {
			if err := service.Shutdown(shutdownCtx); err != nil {
				shutdownErrors = append(shutdownErrors, fmt.Errorf("shutdown: %w", err))
			}
		}
		return errors.Join(shutdownErrors...)
	})

	return g.Wait()
}
