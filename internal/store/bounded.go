package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zfogg/sidechain/ranking/internal/logger"
	"github.com/zfogg/sidechain/ranking/internal/metrics"
	"go.uber.org/zap"
)

// ErrUnavailable wraps every store failure or timeout surfaced by Bounded
var ErrUnavailable = errors.New("engagement store unavailable")

// Bounded runs one store operation under timeout. Failures other than
// ErrNotFound and ErrInvalidInput come back wrapped with ErrUnavailable.
func Bounded(ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	metrics.RecordStoreQuery(op, time.Since(start), err)
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput) {
		return err
	}

	logger.Log.Warn("Engagement store call failed",
		zap.String("operation", op),
		zap.Duration("timeout", timeout),
		zap.Error(err))
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
