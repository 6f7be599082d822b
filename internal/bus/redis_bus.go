package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Ashfaaq98/insights-console/internal/api"
)

// Stream is the Redis stream carrying invalidations.
const Stream = "report-invalidations"

// maxStreamLen bounds the stream; consumers only read new entries.
const maxStreamLen = 1000

// RedisBus provides Redis Streams-based fan-out between consoles
type RedisBus struct {
	client *redis.Client
	origin string
	logger logrus.FieldLogger
}

// NewRedisBus creates a new Redis bus instance
func NewRedisBus(redisURL string, logger logrus.FieldLogger) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &RedisBus{
		client: client,
		origin: uuid.NewString(),
		logger: logger.WithField("component", "bus"),
	}, nil
}

// Origin implements Bus.
func (rb *RedisBus) Origin() string { return rb.origin }

// Close closes the Redis connection
func (rb *RedisBus) Close() error {
	return rb.client.Close()
}

// PublishInvalidation appends inv to the invalidation stream.
func (rb *RedisBus) PublishInvalidation(ctx context.Context, inv Invalidation) error {
	inv.Origin = rb.origin
	if inv.Timestamp == 0 {
		inv.Timestamp = time.Now().Unix()
	}
	fields, err := encodeFields(inv)
	if err != nil {
		return err
	}

	result := rb.client.XAdd(ctx, &redis.XAddArgs{
		Stream: Stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: fields,
	})
	if err := result.Err(); err != nil {
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}

	rb.logger.WithField("kind", inv.Kind).WithField("id", result.Val()).Debug("Published invalidation")
	return nil
}

// Subscribe reads the stream from "now" on. Every console reads every entry,
// so plain XREAD is used rather than a consumer group.
func (rb *RedisBus) Subscribe(ctx context.Context, handler Handler) error {
	lastID := "$"
	rb.logger.WithField("stream", Stream).Info("Starting invalidation reader")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		result := rb.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{Stream, lastID},
			Count:   10,
			Block:   1 * time.Second,
		})
		if err := result.Err(); err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rb.logger.WithError(err).Warn("Error reading invalidation stream")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, stream := range result.Val() {
			for _, message := range stream.Messages {
				lastID = message.ID
				inv := decodeFields(message.Values)
				if inv.Origin == rb.origin {
					continue
				}
				if err := handler(ctx, inv); err != nil {
					rb.logger.WithError(err).WithField("id", message.ID).Warn("Error processing invalidation")
				}
			}
		}
	}
}

// HealthCheck performs a health check on the Redis connection
func (rb *RedisBus) HealthCheck(ctx context.Context) error {
	return rb.client.Ping(ctx).Err()
}

// GetStats returns basic statistics about the invalidation stream
func (rb *RedisBus) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{
		"type":   "redis",
		"origin": rb.origin,
	}
	info, err := rb.client.XInfoStream(ctx, Stream).Result()
	if err != nil {
		// Stream does not exist until the first publish.
		stats["length"] = int64(0)
		return stats, nil
	}
	stats["length"] = info.Length
	stats["last_entry_id"] = info.LastEntry.ID
	return stats, nil
}

func encodeFields(inv Invalidation) (map[string]interface{}, error) {
	ids, err := json.Marshal(inv.ReportIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report ids: %w", err)
	}
	fields := map[string]interface{}{
		"kind":       inv.Kind,
		"report_ids": string(ids),
		"origin":     inv.Origin,
		"timestamp":  inv.Timestamp,
	}
	if len(inv.Actors) > 0 {
		actors, err := json.Marshal(inv.Actors)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal actors: %w", err)
		}
		fields["actors"] = string(actors)
	}
	return fields, nil
}

func decodeFields(values map[string]interface{}) Invalidation {
	fields := make(map[string]string, len(values))
	for key, value := range values {
		switch v := value.(type) {
		case string:
			fields[key] = v
		case int64:
			fields[key] = strconv.FormatInt(v, 10)
		}
	}

	inv := Invalidation{
		Kind:   fields["kind"],
		Origin: fields["origin"],
	}
	if raw := fields["report_ids"]; raw != "" {
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err == nil {
			inv.ReportIDs = ids
		}
	}
	if raw := fields["actors"]; raw != "" {
		var actors []api.Actor
		if err := json.Unmarshal([]byte(raw), &actors); err == nil {
			inv.Actors = actors
		}
	}
	if ts, err := parseTimestamp(fields["timestamp"]); err == nil {
		inv.Timestamp = ts
	}
	return inv
}

// parseTimestamp parses a timestamp string to int64
func parseTimestamp(timestamp string) (int64, error) {
	if timestamp == "" {
		return time.Now().Unix(), nil
	}

	// Try numeric epoch (seconds or milliseconds)
	if n, err := strconv.ParseInt(timestamp, 10, 64); err == nil {
		if n > 1_000_000_000_000 {
			return n / 1000, nil
		}
		return n, nil
	}

	if ts, err := time.Parse(time.RFC3339Nano, timestamp); err == nil {
		return ts.Unix(), nil
	}

	return time.Now().Unix(), fmt.Errorf("unable to parse timestamp: %s", timestamp)
}
