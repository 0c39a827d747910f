// Package notifier pushes fills, closes and kill switch trips to an operator channel.
package notifier

import (
	"context"

	"quorumtrader/internal/logger"
)

// TextNotifier is the minimal notification boundary; execution.Notifier matches it.
type TextNotifier interface {
	SendText(ctx context.Context, text string) error
}

// Nop logs instead of sending. Used when no channel is configured.
type Nop struct{}

func (Nop) SendText(_ context.Context, text string) error {
	logger.Debugf("notify (disabled): %s", text)
	return nil
}
