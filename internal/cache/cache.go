// Package cache memoizes whole-table fetches with an independent freshness
// window per table.
//
// Concurrent Gets of an expired table share one source fetch, which keeps
// running when the caller that started it gives up. Invalidate
// always wins over a fetch already in flight: that fetch still answers the
// callers waiting on it but its result is not stored, so the first Get after
// an Invalidate reaches the source.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mesh-intelligence/formtrack/internal/metrics"
	"github.com/mesh-intelligence/formtrack/pkg/types"
)

var _ types.Source = (*Cache)(nil)

// entry is one memoized table.
type entry struct {
	rows      types.RowSet
	fetchedAt time.Time
}

// Cache wraps a Source with per-table TTL memoization.
type Cache struct {
	src        types.Source
	ttls       map[string]time.Duration
	defaultTTL time.Duration
	serveStale bool
	now        func() time.Time
	logger     *slog.Logger
	metrics    *metrics.Metrics

	mu      sync.RWMutex
	entries map[string]entry
	gens    map[string]uint64 // bumped by Invalidate, per table
	epoch   uint64            // bumped by InvalidateAll
	known   map[string]struct{}

	group singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the freshness window for one table.
func WithTTL(table string, ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttls[table] = ttl
	}
}

// WithTTLs sets the freshness windows for several tables.
func WithTTLs(ttls map[string]time.Duration) Option {
	return func(c *Cache) {
		for table, ttl := range ttls {
			c.ttls[table] = ttl
		}
	}
}

// WithDefaultTTL sets the window for tables without their own TTL.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.defaultTTL = ttl
	}
}

// WithServeStale makes Get return the last good value, instead of the
// error, when refetching an expired table fails.
func WithServeStale(enabled bool) Option {
	return func(c *Cache) {
		c.serveStale = enabled
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithMetrics records hits, misses, and fetch errors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// New wraps src. Without options every table uses types.DefaultStatusTTL.
func New(src types.Source, opts ...Option) *Cache {
	c := &Cache{
		src:        src,
		ttls:       make(map[string]time.Duration),
		defaultTTL: types.DefaultStatusTTL,
		now:        time.Now,
		logger:     slog.New(slog.DiscardHandler),
		entries:    make(map[string]entry),
		gens:       make(map[string]uint64),
		known:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the freshness window for table.
func (c *Cache) TTL(table string) time.Duration {
	if ttl, ok := c.ttls[table]; ok {
		return ttl
	}
	return c.defaultTTL
}

// Fetch implements types.Source so a Cache can stand in for its source.
func (c *Cache) Fetch(ctx context.Context, table string) (types.RowSet, error) {
	return c.Get(ctx, table)
}

// Get returns the memoized table if it is younger than its TTL, and
// otherwise fetches it from the source and memoizes the result. A failed
// fetch never replaces a memoized value.
func (c *Cache) Get(ctx context.Context, table string) (types.RowSet, error) {
	c.mu.RLock()
	e, ok := c.entries[table]
	c.mu.RUnlock()

	if ok && c.now().Sub(e.fetchedAt) < c.TTL(table) {
		c.metrics.IncCacheHit(table)
		return e.rows, nil
	}
	c.metrics.IncCacheMiss(table)

	// The shared fetch outlives any one caller; each caller stops waiting
	// when its own ctx is done.
	ch := c.group.DoChan(table, func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx), table)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return types.RowSet{}, ctx.Err()
	}
	v, err, shared := res.Val, res.Err, res.Shared
	if err != nil {
		if ok && c.serveStale {
			c.metrics.IncStaleServed(table)
			c.logger.WarnContext(ctx, "serving stale table after fetch failure",
				"table", table,
				"age_ms", c.now().Sub(e.fetchedAt).Milliseconds(),
				"error", err,
			)
			return e.rows, nil
		}
		return types.RowSet{}, err
	}
	if shared {
		c.logger.DebugContext(ctx, "shared in-flight fetch", "table", table)
	}
	return v.(types.RowSet), nil
}

// fetch performs one source fetch and stores the result unless the table
// was invalidated while the fetch was running.
func (c *Cache) fetch(ctx context.Context, table string) (types.RowSet, error) {
	c.mu.Lock()
	c.known[table] = struct{}{}
	gen, epoch := c.gens[table], c.epoch
	c.mu.Unlock()

	rows, err := c.src.Fetch(ctx, table)
	if err != nil {
		c.metrics.IncFetchError(table)
		return types.RowSet{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[table] != gen || c.epoch != epoch {
		c.logger.DebugContext(ctx, "discarding fetch raced by invalidation", "table", table)
		return rows, nil
	}
	c.entries[table] = entry{rows: rows, fetchedAt: c.now()}
	return rows, nil
}

// Invalidate forces the next Get of each table to refetch.
func (c *Cache) Invalidate(tables ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, table := range tables {
		delete(c.entries, table)
		c.gens[table]++
		c.group.Forget(table)
	}
	c.logger.Debug("cache invalidated", "tables", tables)
}

// InvalidateAll forces the next Get of every table to refetch.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	c.entries = make(map[string]entry)
	for table := range c.known {
		c.group.Forget(table)
	}
	c.logger.Debug("cache invalidated", "tables", "all")
}
