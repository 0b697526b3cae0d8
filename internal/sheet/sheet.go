// Package sheet is the tabular source adapter: it turns a workbook grid,
// header row first, into a types.RowSet keyed by normalized column names.
package sheet

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mesh-intelligence/formtrack/internal/metrics"
	"github.com/mesh-intelligence/formtrack/pkg/types"
)

var _ types.Source = (*Adapter)(nil)

// Adapter fetches tables from a Workbook. It has no side effects and keeps
// no state between calls.
type Adapter struct {
	wb      types.Workbook
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger used for fetch diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithMetrics records fetch durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Adapter) {
		a.metrics = m
	}
}

// New returns an adapter over wb.
func New(wb types.Workbook, opts ...Option) *Adapter {
	a := &Adapter{wb: wb, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Fetch reads the whole table. Any workbook failure, including a missing
// table, is returned as ErrSourceUnavailable with the cause attached.
func (a *Adapter) Fetch(ctx context.Context, table string) (types.RowSet, error) {
	start := time.Now()
	values, err := a.wb.Values(ctx, table)
	a.metrics.ObserveFetch(table, start)
	if err != nil {
		a.logger.WarnContext(ctx, "source fetch failed",
			"table", table,
			"error", err,
		)
		return types.RowSet{}, &types.Error{
			Op:    "fetch",
			Table: table,
			Kind:  types.ErrSourceUnavailable,
			Err:   err,
		}
	}
	rs := Parse(table, values)
	a.logger.DebugContext(ctx, "source fetched",
		"table", table,
		"rows", rs.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return rs, nil
}

// Parse converts a grid into a RowSet. The first row is the header; blank
// header cells are dropped and, when two headers normalize to the same key,
// the leftmost wins. Short data rows read as empty strings for the missing
// cells. Data rows keep their order so row i of the set is sheet row i+2.
func Parse(table string, values [][]string) types.RowSet {
	rs := types.RowSet{Table: table, Columns: []string{}, Rows: []types.Row{}}
	if len(values) == 0 {
		return rs
	}

	type column struct {
		index int
		key   string
	}
	var cols []column
	seen := make(map[string]bool)
	for i, h := range values[0] {
		name := strings.TrimSpace(h)
		key := types.NormalizeColumn(h)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		cols = append(cols, column{index: i, key: key})
		rs.Columns = append(rs.Columns, name)
	}

	for _, cells := range values[1:] {
		row := make(types.Row, len(cols))
		for _, c := range cols {
			if c.index < len(cells) {
				row[c.key] = cells[c.index]
			} else {
				row[c.key] = ""
			}
		}
		rs.Rows = append(rs.Rows, row)
	}
	return rs
}

// ColumnIndex returns the 1-based position of the header cell that
// normalizes to name, or 0 when there is none.
func ColumnIndex(header []string, name string) int {
	key := types.NormalizeColumn(name)
	for i, h := range header {
		if types.NormalizeColumn(h) == key {
			return i + 1
		}
	}
	return 0
}
