package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	lotteryUseCase "github.com/allisson/lottery/internal/lottery/usecase"
)

// RunRecoverStuck runs the recovery sweep once, returning registrations stuck in
// Processing past the threshold to Pending.
func RunRecoverStuck(
	ctx context.Context,
	processorUseCase lotteryUseCase.ProcessorUseCase,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	recovered, err := processorUseCase.RecoverStuck(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover stuck registrations: %w", err)
	}

	logger.Info("recovery sweep completed", slog.Int64("recovered", recovered))

	if format == "json" {
		return writeJSON(writer, map[string]any{"recovered": recovered})
	}

	_, _ = fmt.Fprintf(writer, "Recovered %d stuck registration(s)\n", recovered)
	return nil
}
