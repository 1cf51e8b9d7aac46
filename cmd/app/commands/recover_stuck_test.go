package commands

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	lotteryMocks "github.com/allisson/lottery/internal/lottery/usecase/mocks"
)

func TestRunRecoverStuck(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("text-output", func(t *testing.T) {
		mockUseCase := &lotteryMocks.MockProcessorUseCase{}
		mockUseCase.On("RecoverStuck", ctx).Return(int64(12), nil)

		var out bytes.Buffer
		err := RunRecoverStuck(ctx, mockUseCase, logger, &out, "text")

		require.NoError(t, err)
		require.Contains(t, out.String(), "Recovered 12 stuck registration(s)")
		mockUseCase.AssertExpectations(t)
	})

	t.Run("json-output", func(t *testing.T) {
		mockUseCase := &lotteryMocks.MockProcessorUseCase{}
		mockUseCase.On("RecoverStuck", ctx).Return(int64(0), nil)

		var out bytes.Buffer
		err := RunRecoverStuck(ctx, mockUseCase, logger, &out, "json")

		require.NoError(t, err)
		require.Contains(t, out.String(), `"recovered": 0`)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("store-error", func(t *testing.T) {
		mockUseCase := &lotteryMocks.MockProcessorUseCase{}
		storeErr := errors.New("connection refused")
		mockUseCase.On("RecoverStuck", ctx).Return(int64(0), storeErr)

		err := RunRecoverStuck(ctx, mockUseCase, logger, &bytes.Buffer{}, "text")

		require.ErrorIs(t, err, storeErr)
		require.Contains(t, err.Error(), "failed to recover stuck registrations")
	})
}
