// Package jsonl implements a Workbook stored as one JSONL file per table in a
// data directory. Each line is a JSON array of cell strings; line 1 is the
// header. Every mutation rewrites the file atomically.
package jsonl

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/mesh-intelligence/formtrack/internal/grid"
	"github.com/mesh-intelligence/formtrack/pkg/types"
)

var _ types.Workbook = (*Workbook)(nil)

// ErrMalformedTable is returned by writes to a table file holding lines
// that do not decode. Reads skip such lines; a rewrite would drop them.
var ErrMalformedTable = errors.New("table file has malformed lines")

// fileExt is appended to the table name to form its file name.
const fileExt = ".jsonl"

// Workbook reads and writes table files under a data directory. The mutex
// serializes writers within one process; separate processes sharing the
// directory see last-writer-wins, like the remote sheet.
type Workbook struct {
	mu     sync.Mutex
	dir    string
	closed bool
}

// Open creates dataDir if needed and returns a workbook rooted there.
func Open(dataDir string) (*Workbook, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return &Workbook{dir: dataDir}, nil
}

// Path returns the file backing table.
func (w *Workbook) Path(table string) string {
	return filepath.Join(w.dir, table+fileExt)
}

// Values reads the table file.
func (w *Workbook) Values(_ context.Context, table string) ([][]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	rows, _, err := w.load(table)
	return rows, err
}

// AppendRow adds a row at the end of the table file.
func (w *Workbook) AppendRow(_ context.Context, table string, values []string) error {
	return w.modify(table, func(rows [][]string) ([][]string, error) {
		return append(rows, append([]string(nil), values...)), nil
	})
}

// UpdateCells rewrites cells of one row.
func (w *Workbook) UpdateCells(_ context.Context, table string, row int, cells []types.Cell) error {
	return w.modify(table, func(rows [][]string) ([][]string, error) {
		if err := grid.Update(rows, row, cells); err != nil {
			return nil, err
		}
		return rows, nil
	})
}

// DeleteRow removes one row.
func (w *Workbook) DeleteRow(_ context.Context, table string, row int) error {
	return w.modify(table, func(rows [][]string) ([][]string, error) {
		return grid.Delete(rows, row)
	})
}

// ReplaceTable writes the full table file.
func (w *Workbook) ReplaceTable(_ context.Context, table string, values [][]string) error {
	if err := grid.ValidateTable(table); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return types.ErrClosed
	}
	if err := writeRows(w.Path(table), values); err != nil {
		return fmt.Errorf("writing %s: %w", table, err)
	}
	return nil
}

// Close marks the workbook closed. Idempotent.
func (w *Workbook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

// modify loads the table, applies fn, and persists the result.
func (w *Workbook) modify(table string, fn func([][]string) ([][]string, error)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	rows, malformed, err := w.load(table)
	if err != nil {
		return err
	}
	if malformed > 0 {
		return fmt.Errorf("%s: %d lines: %w", table, malformed, ErrMalformedTable)
	}
	rows, err = fn(rows)
	if err != nil {
		return err
	}
	if err := writeRows(w.Path(table), rows); err != nil {
		return fmt.Errorf("writing %s: %w", table, err)
	}
	return nil
}

// load reads the table file and reports how many lines it skipped. The
// caller must hold w.mu.
func (w *Workbook) load(table string) ([][]string, int, error) {
	if w.closed {
		return nil, 0, types.ErrClosed
	}
	if err := grid.ValidateTable(table); err != nil {
		return nil, 0, err
	}
	rows, malformed, err := readRows(w.Path(table))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0, types.ErrTableNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s: %w", table, err)
	}
	return rows, malformed, nil
}
