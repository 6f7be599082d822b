package bus

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// NullBus is a no-op implementation of the bus interface for when Redis is disabled
type NullBus struct {
	origin string
	logger logrus.FieldLogger
}

// NewNullBus creates a new null bus instance
func NewNullBus(logger logrus.FieldLogger) *NullBus {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}

	return &NullBus{
		origin: uuid.NewString(),
		logger: logger.WithField("component", "bus"),
	}
}

// Origin implements Bus.
func (nb *NullBus) Origin() string { return nb.origin }

// Close is a no-op for null bus
func (nb *NullBus) Close() error {
	return nil
}

// PublishInvalidation logs the invalidation but doesn't actually publish it
func (nb *NullBus) PublishInvalidation(ctx context.Context, inv Invalidation) error {
	nb.logger.WithField("kind", inv.Kind).Debug("Would publish invalidation (Redis disabled)")
	return nil
}

// Subscribe blocks until the context is cancelled; nothing ever arrives.
func (nb *NullBus) Subscribe(ctx context.Context, handler Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

// GetStats returns empty stats for null bus
func (nb *NullBus) GetStats(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{
		"type":   "null",
		"status": "disabled",
	}, nil
}

// HealthCheck always returns nil for null bus
func (nb *NullBus) HealthCheck(ctx context.Context) error {
	return nil
}
