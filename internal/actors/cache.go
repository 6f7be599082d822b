// Package actors caches the AI-derived key actors in two tiers (process
// memory and the durable state store) and resolves them through a fixed
// fallback chain.
package actors

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Ashfaaq98/insights-console/internal/api"
)

// StorageKey is the durable key holding the JSON-encoded actor array.
const StorageKey = "cachedKeyActors"

// Source names the tier that answered a Get.
type Source string

const (
	SourceMemory   Source = "memory"
	SourceDurable  Source = "durable"
	SourceComputed Source = "computed"
	SourceDefault  Source = "default"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Durable is the persisted tier. *store.Store implements it.
type Durable interface {
	GetValue(ctx context.Context, key string) (string, bool, error)
	PutValue(ctx context.Context, key, value string) error
}

// ReportSource provides the currently loaded reports for the computed tier.
type ReportSource interface {
	All() []api.Report
}

// Cache resolves key actors: memory, then durable, then aggregated from the
// loaded reports, then the built-in defaults.
type Cache struct {
	mu      sync.Mutex
	memory  []api.Actor
	durable Durable
	reports ReportSource
	logger  logrus.FieldLogger
}

// NewCache creates a cache. durable and reports may be nil.
func NewCache(durable Durable, reports ReportSource, logger logrus.FieldLogger) *Cache {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Cache{
		durable: durable,
		reports: reports,
		logger:  logger.WithField("component", "actors"),
	}
}

// Get returns the best available actor set and the tier it came from.
func (c *Cache) Get(ctx context.Context) ([]api.Actor, Source) {
	lookups := []struct {
		source Source
		fn     func(context.Context) ([]api.Actor, bool)
	}{
		{SourceMemory, c.fromMemory},
		{SourceDurable, c.fromDurable},
		{SourceComputed, c.fromReports},
		{SourceDefault, func(context.Context) ([]api.Actor, bool) { return Defaults(), true }},
	}
	for _, l := range lookups {
		if actors, ok := l.fn(ctx); ok {
			return actors, l.source
		}
	}
	return nil, SourceDefault
}

// Set replaces both tiers with actors. An empty set is ignored so a good
// cache is never erased by an empty or failed generation.
func (c *Cache) Set(ctx context.Context, actors []api.Actor) error {
	if len(actors) == 0 {
		c.logger.Debug("Ignoring empty key actor set")
		return nil
	}
	cp := cloneActors(actors)

	c.mu.Lock()
	c.memory = cp
	c.mu.Unlock()

	if c.durable == nil {
		return nil
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to encode key actors: %w", err)
	}
	if err := c.durable.PutValue(ctx, StorageKey, string(data)); err != nil {
		return fmt.Errorf("failed to persist key actors: %w", err)
	}
	return nil
}

// Invalidate drops the memory tier so the next Get reads the durable tier.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.memory = nil
	c.mu.Unlock()
}

func (c *Cache) fromMemory(context.Context) ([]api.Actor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.memory) == 0 {
		return nil, false
	}
	return cloneActors(c.memory), true
}

func (c *Cache) fromDurable(ctx context.Context) ([]api.Actor, bool) {
	if c.durable == nil {
		return nil, false
	}
	raw, ok, err := c.durable.GetValue(ctx, StorageKey)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to read persisted key actors")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var actors []api.Actor
	if err := json.Unmarshal([]byte(raw), &actors); err != nil {
		c.logger.WithError(err).Warn("Discarding malformed persisted key actors")
		return nil, false
	}
	if len(actors) == 0 {
		return nil, false
	}

	c.mu.Lock()
	c.memory = cloneActors(actors)
	c.mu.Unlock()
	return actors, true
}

func (c *Cache) fromReports(context.Context) ([]api.Actor, bool) {
	if c.reports == nil {
		return nil, false
	}
	actors := Aggregate(c.reports.All())
	return actors, len(actors) > 0
}

// Aggregate groups the actors of all reports by name, keeping the first
// description seen and recording every report that mentions the actor.
func Aggregate(reports []api.Report) []api.Actor {
	index := make(map[string]int)
	var out []api.Actor
	for _, r := range reports {
		for _, a := range r.Actors {
			i, ok := index[a.Name]
			if !ok {
				i = len(out)
				index[a.Name] = i
				out = append(out, api.Actor{Name: a.Name, Description: a.Description, Icon: a.Icon})
			}
			out[i].Reports = append(out[i].Reports, r.ID)
		}
	}
	return out
}

// Defaults returns the built-in actor set.
func Defaults() []api.Actor {
	var actors []api.Actor
	if err := yaml.Unmarshal(defaultsYAML, &actors); err != nil {
		panic(fmt.Sprintf("actors: invalid embedded defaults: %v", err))
	}
	return actors
}

func cloneActors(in []api.Actor) []api.Actor {
	out := make([]api.Actor, len(in))
	for i, a := range in {
		out[i] = a
		if a.Reports != nil {
			out[i].Reports = append([]string(nil), a.Reports...)
		}
	}
	return out
}
