// Package cache provides an optional response cache over a backend adapter.
// Identical (model, prompt) pairs return the cached response, and concurrent
// identical calls are collapsed into a single backend request. Accounting is
// unaffected: the cache sits below the executor, so metering still runs for
// every caller.
package cache

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lumenlab/axon/pkg/metrics"
	"github.com/lumenlab/axon/pkg/providers"
	"golang.org/x/sync/singleflight"
)

const defaultSize = 512

// Cached wraps an adapter with an LRU response cache.
type Cached struct {
	inner   providers.Adapter
	entries *lru.Cache[string, string]
	group   singleflight.Group
	metrics *metrics.Metrics
}

// New wraps the adapter. size <= 0 selects the default capacity. metrics may
// be nil.
func New(inner providers.Adapter, size int, m *metrics.Metrics) (*Cached, error) {
	if size <= 0 {
		size = defaultSize
	}
	entries, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &Cached{inner: inner, entries: entries, metrics: m}, nil
}

// Available reports the wrapped adapter's availability.
func (c *Cached) Available() bool {
	return c.inner.Available()
}

func key(modelID, prompt string) string {
	return modelID + "\x00" + strings.TrimSpace(prompt)
}

// Complete returns the cached response when present, otherwise performs the
// call once no matter how many identical callers are in flight.
func (c *Cached) Complete(ctx context.Context, modelID, prompt string) (string, error) {
	k := key(modelID, prompt)

	if text, ok := c.entries.Get(k); ok {
		c.hit()
		return text, nil
	}
	c.miss()

	result, err, _ := c.group.Do(k, func() (any, error) {
		text, err := c.inner.Complete(ctx, modelID, prompt)
		if err != nil {
			return "", err
		}
		c.entries.Add(k, text)
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (c *Cached) hit() {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *Cached) miss() {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
