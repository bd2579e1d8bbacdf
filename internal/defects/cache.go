package defects

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/daimoniac/covdocs/internal/observability"
)

// Fetcher retrieves the raw defect set for one stream/snapshot key
type Fetcher interface {
	FetchDefects(ctx context.Context, stream, snapshot string) ([]Record, error)
}

type cacheKey struct {
	stream   string
	snapshot string
}

type cacheEntry struct {
	records []Record
	err     error
}

// Cache memoizes defect fetches per (stream, snapshot) key for the lifetime
// of a single document build. Multiple directives referencing the same key
// issue at most one remote call; a retrieval failure is stored too, so the
// failure is reported once and every later directive on the key gets the
// same error without another round trip. No eviction.
type Cache struct {
	fetcher Fetcher
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[cacheKey]*cacheEntry
}

// NewCache creates an empty defect cache around the given fetcher
func NewCache(fetcher Fetcher, logger *slog.Logger) *Cache {
	return &Cache{
		fetcher: fetcher,
		logger:  logger,
		entries: make(map[cacheKey]*cacheEntry),
	}
}

// GetDefects returns the cached defect sequence for the key, fetching it on
// first use. The returned slice is shared; callers must not mutate it.
func (c *Cache) GetDefects(ctx context.Context, stream, snapshot string) ([]Record, error) {
	key := cacheKey{stream: stream, snapshot: snapshot}
	metrics := observability.GetMetrics()

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok {
		c.mu.Unlock()
		metrics.CacheHits.Inc()
		return entry.records, entry.err
	}
	c.mu.Unlock()

	c.logger.Info("fetching defects",
		"stream", stream,
		"snapshot", snapshot)

	start := time.Now()
	metrics.FetchesTotal.Inc()
	records, err := c.fetcher.FetchDefects(ctx, stream, snapshot)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.FetchesFailed.Inc()
		c.logger.Error("defect fetch failed",
			"stream", stream,
			"snapshot", snapshot,
			"error", err.Error())
	} else {
		metrics.DefectsFetched.Add(float64(len(records)))
		c.logger.Info("defects received",
			"stream", stream,
			"snapshot", snapshot,
			"count", len(records))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[key]; ok {
		// Lost a race with another insert; keep the first result.
		return entry.records, entry.err
	}
	c.entries[key] = &cacheEntry{records: records, err: err}
	return records, err
}

// Len returns the number of cached keys
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
