package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/formtrack/internal/metrics"
	"github.com/mesh-intelligence/formtrack/pkg/types"
)

// fakeSource counts fetches per table and returns a RowSet tagged with the
// call number so tests can tell fetches apart.
type fakeSource struct {
	mu      sync.Mutex
	calls   map[string]int
	fail    error
	entered chan string   // receives the table when a fetch starts, if set
	release chan struct{} // fetches block on it, if set
}

func newFakeSource() *fakeSource {
	return &fakeSource{calls: make(map[string]int)}
}

func (f *fakeSource) Fetch(ctx context.Context, table string) (types.RowSet, error) {
	f.mu.Lock()
	f.calls[table]++
	n := f.calls[table]
	fail := f.fail
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- table
	}
	if f.release != nil {
		<-f.release
	}
	if err := ctx.Err(); err != nil {
		return types.RowSet{}, err
	}
	if fail != nil {
		return types.RowSet{}, &types.Error{Op: "fetch", Table: table, Kind: types.ErrSourceUnavailable, Err: fail}
	}
	return types.RowSet{
		Table:   table,
		Columns: []string{"call"},
		Rows:    []types.Row{{"call": fmt.Sprint(n)}},
	}, nil
}

func (f *fakeSource) count(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[table]
}

func (f *fakeSource) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestGet_WithinTTLReturnsSameValue(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	clock := newClock()
	c := New(src, WithTTL(types.MatrixTable, 300*time.Second), WithClock(clock.Now))

	first, err := c.Get(ctx, types.MatrixTable)
	require.NoError(t, err)
	clock.Advance(299 * time.Second)
	second, err := c.Get(ctx, types.MatrixTable)
	require.NoError(t, err)

	assert.Equal(t, 1, src.count(types.MatrixTable))
	assert.Equal(t, first, second)
	assert.Same(t, &first.Rows[0], &second.Rows[0], "hit must return the memoized value itself")
}

func TestGet_AfterTTLRefetches(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	clock := newClock()
	c := New(src, WithTTL(types.StatusTable, 60*time.Second), WithClock(clock.Now))

	_, err := c.Get(ctx, types.StatusTable)
	require.NoError(t, err)
	clock.Advance(60 * time.Second)
	rs, err := c.Get(ctx, types.StatusTable)
	require.NoError(t, err)

	assert.Equal(t, 2, src.count(types.StatusTable))
	assert.Equal(t, "2", rs.Rows[0].Get("call"))
}

func TestGet_IndependentTTLs(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	clock := newClock()
	c := New(src,
		WithTTLs(types.CacheConfig{MatrixTTL: 300 * time.Second, RegistryTTL: 300 * time.Second, StatusTTL: 60 * time.Second}.TTLs()),
		WithClock(clock.Now),
	)

	for _, table := range types.StandardTableNames {
		_, err := c.Get(ctx, table)
		require.NoError(t, err)
	}
	clock.Advance(90 * time.Second)
	for _, table := range types.StandardTableNames {
		_, err := c.Get(ctx, table)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, src.count(types.MatrixTable))
	assert.Equal(t, 1, src.count(types.RegistryTable))
	assert.Equal(t, 2, src.count(types.StatusTable))
}

func TestGet_ZeroTTLAlwaysFetches(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	c := New(src, WithDefaultTTL(0))

	for i := 0; i < 3; i++ {
		_, err := c.Get(ctx, types.StatusTable)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, src.count(types.StatusTable))
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	c := New(src, WithDefaultTTL(time.Hour))

	for _, table := range types.StandardTableNames {
		_, err := c.Get(ctx, table)
		require.NoError(t, err)
	}

	c.Invalidate(types.StatusTable)
	for _, table := range types.StandardTableNames {
		_, err := c.Get(ctx, table)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, src.count(types.MatrixTable))
	assert.Equal(t, 2, src.count(types.StatusTable))

	c.InvalidateAll()
	for _, table := range types.StandardTableNames {
		_, err := c.Get(ctx, table)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, src.count(types.MatrixTable))
	assert.Equal(t, 2, src.count(types.RegistryTable))
	assert.Equal(t, 3, src.count(types.StatusTable))
}

func TestGet_FailurePropagatesAndKeepsCachedValue(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	clock := newClock()
	c := New(src, WithDefaultTTL(time.Minute), WithClock(clock.Now))

	_, err := c.Get(ctx, types.StatusTable)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	src.setFail(errors.New("quota exceeded"))
	_, err = c.Get(ctx, types.StatusTable)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrSourceUnavailable)

	src.setFail(nil)
	rs, err := c.Get(ctx, types.StatusTable)
	require.NoError(t, err)
	assert.Equal(t, "3", rs.Rows[0].Get("call"))

	clock.Advance(30 * time.Second)
	rs, err = c.Get(ctx, types.StatusTable)
	require.NoError(t, err)
	assert.Equal(t, "3", rs.Rows[0].Get("call"), "recovered value is memoized")
}

func TestGet_ServeStale(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	clock := newClock()
	m := metrics.New(prometheus.NewRegistry())
	c := New(src, WithDefaultTTL(time.Minute), WithClock(clock.Now), WithServeStale(true), WithMetrics(m))

	_, err := c.Get(ctx, types.StatusTable)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	src.setFail(errors.New("quota exceeded"))
	rs, err := c.Get(ctx, types.StatusTable)
	require.NoError(t, err)
	assert.Equal(t, "1", rs.Rows[0].Get("call"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheStaleServed.WithLabelValues(types.StatusTable)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchErrors.WithLabelValues(types.StatusTable)))

	// Nothing to serve for a table that was never fetched.
	_, err = c.Get(ctx, types.MatrixTable)
	assert.ErrorIs(t, err, types.ErrSourceUnavailable)
}

func TestGet_ConcurrentMissesShareOneFetch(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.entered = make(chan string, 16)
	src.release = make(chan struct{})
	c := New(src, WithDefaultTTL(time.Hour))

	const callers = 8
	var wg sync.WaitGroup
	var failures atomic.Int32
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := c.Get(ctx, types.MatrixTable); err != nil {
			failures.Add(1)
		}
	}()
	<-src.entered

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Get(ctx, types.MatrixTable); err != nil {
				failures.Add(1)
			}
		}()
	}
	// Give the waiters time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(src.release)
	wg.Wait()

	assert.Zero(t, failures.Load())
	assert.Equal(t, 1, src.count(types.MatrixTable))
}

func TestGet_CancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	src := newFakeSource()
	src.entered = make(chan string, 4)
	src.release = make(chan struct{})
	c := New(src, WithDefaultTTL(time.Hour))

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Get(first, types.StatusTable)
		firstErr <- err
	}()
	<-src.entered

	type outcome struct {
		rs  types.RowSet
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		rs, err := c.Get(context.Background(), types.StatusTable)
		second <- outcome{rs, err}
	}()
	// Give the second caller time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(src.release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, "1", got.rs.Rows[0].Get("call"))
	assert.Equal(t, 1, src.count(types.StatusTable))

	rs, err := c.Get(context.Background(), types.StatusTable)
	require.NoError(t, err)
	assert.Equal(t, "1", rs.Rows[0].Get("call"), "shared fetch is memoized")
}

func TestInvalidate_WinsOverInFlightFetch(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.entered = make(chan string, 4)
	src.release = make(chan struct{}, 4)
	c := New(src, WithDefaultTTL(time.Hour))

	done := make(chan types.RowSet)
	go func() {
		rs, err := c.Get(ctx, types.StatusTable)
		assert.NoError(t, err)
		done <- rs
	}()
	<-src.entered

	c.Invalidate(types.StatusTable)
	src.release <- struct{}{}
	stale := <-done
	assert.Equal(t, "1", stale.Rows[0].Get("call"))

	src.release <- struct{}{}
	fresh, err := c.Get(ctx, types.StatusTable)
	require.NoError(t, err)
	<-src.entered
	assert.Equal(t, "2", fresh.Rows[0].Get("call"), "raced fetch must not be memoized")
}

func TestInvalidateAll_WinsOverInFlightFetch(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.entered = make(chan string, 4)
	src.release = make(chan struct{}, 4)
	c := New(src, WithDefaultTTL(time.Hour))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := c.Get(ctx, types.RegistryTable)
		assert.NoError(t, err)
	}()
	<-src.entered

	c.InvalidateAll()
	src.release <- struct{}{}
	<-done

	src.release <- struct{}{}
	rs, err := c.Get(ctx, types.RegistryTable)
	require.NoError(t, err)
	<-src.entered
	assert.Equal(t, "2", rs.Rows[0].Get("call"))
	assert.Equal(t, 2, src.count(types.RegistryTable))
}

func TestMetrics_HitsAndMisses(t *testing.T) {
	ctx := context.Background()
	m := metrics.New(prometheus.NewRegistry())
	c := New(newFakeSource(), WithDefaultTTL(time.Hour), WithMetrics(m))

	for i := 0; i < 3; i++ {
		_, err := c.Get(ctx, types.RegistryTable)
		require.NoError(t, err)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMisses.WithLabelValues(types.RegistryTable)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheHits.WithLabelValues(types.RegistryTable)))
}
