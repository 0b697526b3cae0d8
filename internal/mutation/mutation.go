// Package mutation implements the status log write protocol: upsert marks a
// (person, document) pair complete, retract removes its record.
//
// Both operations read the whole status table fresh, scan it linearly, and
// then write by row position. The workbook has no transactions, so another
// writer can move rows between the read and the write; the later write wins.
// Callers invalidate any cached copy of the status table after a successful
// call.
package mutation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mesh-intelligence/formtrack/internal/metrics"
	"github.com/mesh-intelligence/formtrack/pkg/types"
)

// Operation names used in errors, logs and metrics.
const (
	OpUpsert  = "upsert"
	OpRetract = "retract"
)

// Mutator applies status mutations to a workbook.
type Mutator struct {
	wb      types.Workbook
	now     func() time.Time
	loc     *time.Location
	logger  *slog.Logger
	metrics *metrics.Metrics

	// mu serializes the read-scan-write sequences issued by this process.
	mu sync.Mutex
}

// Option configures a Mutator.
type Option func(*Mutator)

// WithClock sets the time source for status timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Mutator) {
		m.now = now
	}
}

// WithLocation sets the zone timestamps are written in.
func WithLocation(loc *time.Location) Option {
	return func(m *Mutator) {
		if loc != nil {
			m.loc = loc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mutator) {
		m.logger = logger
	}
}

// WithMetrics records mutation outcomes.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Mutator) {
		m.metrics = mt
	}
}

// New returns a Mutator writing to wb.
func New(wb types.Workbook, opts ...Option) *Mutator {
	m := &Mutator{
		wb:     wb,
		now:    time.Now,
		loc:    time.Local,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Upsert marks documentName complete for personID. The first row matching
// the pair is rewritten in place and ResultUpdated returned; with no match a
// new row is appended and ResultAppended returned. Further matching rows are
// left alone.
func (m *Mutator) Upsert(ctx context.Context, personID, documentName string) (types.MutationResult, error) {
	personID, documentName = strings.TrimSpace(personID), strings.TrimSpace(documentName)
	if err := validate(OpUpsert, personID, documentName); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap, err := m.snapshot(ctx)
	if err != nil {
		return "", m.fail(ctx, OpUpsert, personID, documentName, err)
	}
	stamp := m.now().In(m.loc).Format(types.TimestampLayout)

	if row, n := snap.find(personID, documentName); n > 0 {
		m.warnDuplicates(ctx, OpUpsert, personID, documentName, n)
		err := m.wb.UpdateCells(ctx, types.StatusTable, row, []types.Cell{
			{Col: snap.completedCol, Value: types.ValueCompleted},
			{Col: snap.timestampCol, Value: stamp},
		})
		if err != nil {
			return "", m.fail(ctx, OpUpsert, personID, documentName, err)
		}
		return m.done(ctx, OpUpsert, personID, documentName, types.ResultUpdated), nil
	}

	record := snap.record(personID, documentName, stamp)
	if snap.empty() {
		// A missing or empty table gets its header in the same write.
		err = m.wb.ReplaceTable(ctx, types.StatusTable, [][]string{types.StatusHeader, record})
	} else {
		err = m.wb.AppendRow(ctx, types.StatusTable, record)
	}
	if err != nil {
		return "", m.fail(ctx, OpUpsert, personID, documentName, err)
	}
	return m.done(ctx, OpUpsert, personID, documentName, types.ResultAppended), nil
}

// Retract deletes the first row matching the pair and returns
// ResultDeleted, or ResultNotFound when no row matches.
func (m *Mutator) Retract(ctx context.Context, personID, documentName string) (types.MutationResult, error) {
	personID, documentName = strings.TrimSpace(personID), strings.TrimSpace(documentName)
	if err := validate(OpRetract, personID, documentName); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap, err := m.snapshot(ctx)
	if err != nil {
		return "", m.fail(ctx, OpRetract, personID, documentName, err)
	}

	row, n := snap.find(personID, documentName)
	if n == 0 {
		return m.done(ctx, OpRetract, personID, documentName, types.ResultNotFound), nil
	}
	m.warnDuplicates(ctx, OpRetract, personID, documentName, n)
	if err := m.wb.DeleteRow(ctx, types.StatusTable, row); err != nil {
		return "", m.fail(ctx, OpRetract, personID, documentName, err)
	}
	return m.done(ctx, OpRetract, personID, documentName, types.ResultDeleted), nil
}

func validate(op, personID, documentName string) error {
	if personID != "" && documentName != "" {
		return nil
	}
	return &types.Error{
		Op:       op,
		Table:    types.StatusTable,
		PersonID: personID,
		Document: documentName,
		Kind:     types.ErrInvalidInput,
		Err:      errors.New("person id and document name are required"),
	}
}

func (m *Mutator) snapshot(ctx context.Context) (*snapshot, error) {
	values, err := m.wb.Values(ctx, types.StatusTable)
	if errors.Is(err, types.ErrTableNotFound) {
		return newSnapshot(nil), nil
	}
	if err != nil {
		return nil, err
	}
	return newSnapshot(values), nil
}

func (m *Mutator) fail(ctx context.Context, op, personID, documentName string, err error) error {
	m.metrics.IncMutation(op, "error")
	m.logger.ErrorContext(ctx, "status mutation failed",
		"op", op,
		"person_id", personID,
		"document", documentName,
		"error", err,
	)
	return &types.Error{
		Op:       op,
		Table:    types.StatusTable,
		PersonID: personID,
		Document: documentName,
		Kind:     types.ErrMutationFailure,
		Err:      err,
	}
}

func (m *Mutator) done(ctx context.Context, op, personID, documentName string, result types.MutationResult) types.MutationResult {
	m.metrics.IncMutation(op, string(result))
	m.logger.InfoContext(ctx, "status mutated",
		"op", op,
		"person_id", personID,
		"document", documentName,
		"result", string(result),
	)
	return result
}

func (m *Mutator) warnDuplicates(ctx context.Context, op, personID, documentName string, n int) {
	if n < 2 {
		return
	}
	m.logger.WarnContext(ctx, "duplicate status rows, using the first",
		"op", op,
		"person_id", personID,
		"document", documentName,
		"matches", n,
	)
}
