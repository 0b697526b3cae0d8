// Package memory implements a process-local Workbook. It backs the memory
// backend and the unit tests of the packages above the storage layer.
package memory

import (
	"context"
	"sync"

	"github.com/mesh-intelligence/formtrack/internal/grid"
	"github.com/mesh-intelligence/formtrack/pkg/types"
)

var _ types.Workbook = (*Workbook)(nil)

// Workbook keeps every table as an in-memory grid.
type Workbook struct {
	mu     sync.RWMutex
	tables map[string][][]string
	closed bool
}

// New returns an empty workbook.
func New() *Workbook {
	return &Workbook{tables: make(map[string][][]string)}
}

// Values returns a copy of the table grid.
func (w *Workbook) Values(_ context.Context, table string) ([][]string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	g, err := w.lookup(table)
	if err != nil {
		return nil, err
	}
	return grid.Clone(g), nil
}

// AppendRow adds a row after the last row.
func (w *Workbook) AppendRow(_ context.Context, table string, values []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	g, err := w.lookup(table)
	if err != nil {
		return err
	}
	w.tables[table] = append(g, append([]string(nil), values...))
	return nil
}

// UpdateCells rewrites cells of one row.
func (w *Workbook) UpdateCells(_ context.Context, table string, row int, cells []types.Cell) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	g, err := w.lookup(table)
	if err != nil {
		return err
	}
	return grid.Update(g, row, cells)
}

// DeleteRow removes a row; later rows shift up.
func (w *Workbook) DeleteRow(_ context.Context, table string, row int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	g, err := w.lookup(table)
	if err != nil {
		return err
	}
	g, err = grid.Delete(g, row)
	if err != nil {
		return err
	}
	w.tables[table] = g
	return nil
}

// ReplaceTable creates or overwrites the table.
func (w *Workbook) ReplaceTable(_ context.Context, table string, values [][]string) error {
	if err := grid.ValidateTable(table); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return types.ErrClosed
	}
	w.tables[table] = grid.Clone(values)
	return nil
}

// Close marks the workbook closed. Idempotent.
func (w *Workbook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

// lookup returns the grid for table. The caller must hold w.mu.
func (w *Workbook) lookup(table string) ([][]string, error) {
	if w.closed {
		return nil, types.ErrClosed
	}
	g, ok := w.tables[table]
	if !ok {
		return nil, types.ErrTableNotFound
	}
	return g, nil
}
