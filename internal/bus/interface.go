// Package bus fans report mutations out to every console connected to the
// same Redis, so caches held by other consoles can be invalidated.
package bus

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/Ashfaaq98/insights-console/internal/api"
)

// Invalidation kinds.
const (
	KindReportsUploaded = "reports_uploaded"
	KindReportDeleted   = "report_deleted"
	KindActorsUpdated   = "actors_updated"
)

// Invalidation tells other consoles that server-side state changed.
type Invalidation struct {
	Kind      string   `json:"kind"`
	ReportIDs []string `json:"report_ids,omitempty"`
	Origin    string   `json:"origin"`
	Timestamp int64    `json:"timestamp"`

	// Actors carries the new key actor set of an actors_updated event, so
	// consoles with their own state database can adopt it.
	Actors []api.Actor `json:"actors,omitempty"`
}

// Handler processes one invalidation from another console.
type Handler func(ctx context.Context, inv Invalidation) error

// Bus defines the interface for invalidation bus implementations
type Bus interface {
	// Origin identifies this console; it is stamped on published messages and
	// used to skip our own messages when reading.
	Origin() string

	// PublishInvalidation announces a mutation.
	PublishInvalidation(ctx context.Context, inv Invalidation) error

	// Subscribe blocks, calling handler for every invalidation published by
	// other consoles after the call, until ctx is done.
	Subscribe(ctx context.Context, handler Handler) error

	// GetStats returns basic statistics about the bus
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// HealthCheck performs a health check on the bus connection
	HealthCheck(ctx context.Context) error

	// Close closes the bus connection
	Close() error
}

// NewBus creates a new bus instance based on the Redis URL
// If redisURL is empty or unreachable, returns a NullBus
func NewBus(redisURL string, logger logrus.FieldLogger) Bus {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}

	if redisURL == "" {
		return NewNullBus(logger)
	}

	redisBus, err := NewRedisBus(redisURL, logger)
	if err == nil {
		return redisBus
	}

	logger.WithError(err).Warn("Redis unavailable, continuing without cross-console invalidation")
	return NewNullBus(logger)
}
