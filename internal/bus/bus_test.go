package bus

import (
	"context"
	"testing"
	"time"

	"github.com/Ashfaaq98/insights-console/internal/api"
)

func TestNewBusFallsBackToNull(t *testing.T) {
	if _, ok := NewBus("", nil).(*NullBus); !ok {
		t.Fatalf("empty URL should yield NullBus")
	}
	if _, ok := NewBus("not a url", nil).(*NullBus); !ok {
		t.Fatalf("invalid URL should yield NullBus")
	}
	if _, ok := NewBus("redis://127.0.0.1:1/0", nil).(*NullBus); !ok {
		t.Fatalf("unreachable Redis should yield NullBus")
	}
}

func TestNullBus(t *testing.T) {
	nb := NewNullBus(nil)
	if nb.Origin() == "" {
		t.Fatalf("expected origin id")
	}
	if err := nb.PublishInvalidation(context.Background(), Invalidation{Kind: KindReportDeleted}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	stats, _ := nb.GetStats(context.Background())
	if stats["type"] != "null" {
		t.Fatalf("unexpected stats: %v", stats)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := nb.Subscribe(ctx, func(context.Context, Invalidation) error {
		t.Fatalf("null bus delivered a message")
		return nil
	})
	if err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestFieldsRoundTrip(t *testing.T) {
	in := Invalidation{Kind: KindReportsUploaded, ReportIDs: []string{"a", "b"}, Origin: "o1", Timestamp: 1700000000}
	fields, err := encodeFields(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// Redis hands every value back as a string.
	wire := map[string]interface{}{}
	for k, v := range fields {
		switch x := v.(type) {
		case int64:
			wire[k] = time.Unix(x, 0).UTC().Format(time.RFC3339)
		default:
			wire[k] = x
		}
	}
	out := decodeFields(wire)
	if out.Kind != in.Kind || out.Origin != in.Origin || out.Timestamp != in.Timestamp {
		t.Fatalf("mismatch: %+v", out)
	}
	if len(out.ReportIDs) != 2 || out.ReportIDs[1] != "b" {
		t.Fatalf("report ids: %v", out.ReportIDs)
	}
}

func TestFieldsCarryActors(t *testing.T) {
	in := Invalidation{Kind: KindActorsUpdated, Origin: "o1", Actors: []api.Actor{{Name: "ECB", Description: "rates"}}}
	fields, err := encodeFields(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, ok := fields["actors"]; !ok {
		t.Fatalf("actors field missing: %v", fields)
	}
	out := decodeFields(fields)
	if len(out.Actors) != 1 || out.Actors[0].Name != "ECB" || out.Actors[0].Description != "rates" {
		t.Fatalf("actors: %+v", out.Actors)
	}

	bare, err := encodeFields(Invalidation{Kind: KindReportDeleted})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, ok := bare["actors"]; ok {
		t.Fatalf("actors field written without actors")
	}
}

func TestParseTimestamp(t *testing.T) {
	if ts, err := parseTimestamp("1700000000123"); err != nil || ts != 1700000000 {
		t.Fatalf("millis: %d %v", ts, err)
	}
	if _, err := parseTimestamp("yesterday"); err == nil {
		t.Fatalf("expected error")
	}
}
