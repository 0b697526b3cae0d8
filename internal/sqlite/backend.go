// Package sqlite implements a Workbook on an embedded SQLite database. Each
// sheet row is stored with its 1-based position and its cells as a JSON array;
// positional deletes renumber the following rows inside one transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/formtrack/internal/grid"
	"github.com/mesh-intelligence/formtrack/pkg/types"
)

var _ types.Workbook = (*Backend)(nil)

// DBFileName is the database file created in the data directory.
const DBFileName = "workbook.db"

// Backend implements types.Workbook using SQLite.
type Backend struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// Open creates dataDir if needed, opens the workbook database, and applies
// the schema.
func Open(dataDir string) (*Backend, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dataDir, DBFileName))
	if err != nil {
		return nil, err
	}
	// One connection keeps writers from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for _, ddl := range schemaDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying schema: %w", err)
		}
	}
	return &Backend{db: db}, nil
}

// Values returns the sheet grid ordered by position.
func (b *Backend) Values(ctx context.Context, table string) ([][]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, types.ErrClosed
	}
	if err := sheetExists(ctx, b.db, table); err != nil {
		return nil, err
	}

	rows, err := b.db.QueryContext(ctx,
		"SELECT cells FROM sheet_rows WHERE sheet = ? ORDER BY position", table)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	out := [][]string{}
	for rows.Next() {
		var cellsJSON string
		if err := rows.Scan(&cellsJSON); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", table, err)
		}
		cells, err := decodeCells(cellsJSON)
		if err != nil {
			return nil, fmt.Errorf("decoding %s row: %w", table, err)
		}
		out = append(out, cells)
	}
	return out, rows.Err()
}

// AppendRow inserts a row after the highest position.
func (b *Backend) AppendRow(ctx context.Context, table string, values []string) error {
	return b.withTx(ctx, table, func(tx *sql.Tx) error {
		cellsJSON, err := encodeCells(values)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sheet_rows (sheet, position, cells)
			 SELECT ?, COALESCE(MAX(position), 0) + 1, ? FROM sheet_rows WHERE sheet = ?`,
			table, cellsJSON, table)
		if err != nil {
			return fmt.Errorf("appending to %s: %w", table, err)
		}
		return nil
	})
}

// UpdateCells rewrites cells of the row at position row.
func (b *Backend) UpdateCells(ctx context.Context, table string, row int, cells []types.Cell) error {
	return b.withTx(ctx, table, func(tx *sql.Tx) error {
		var cellsJSON string
		err := tx.QueryRowContext(ctx,
			"SELECT cells FROM sheet_rows WHERE sheet = ? AND position = ?", table, row,
		).Scan(&cellsJSON)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: row %d", types.ErrRowOutOfRange, row)
		}
		if err != nil {
			return fmt.Errorf("reading %s row %d: %w", table, row, err)
		}

		current, err := decodeCells(cellsJSON)
		if err != nil {
			return fmt.Errorf("decoding %s row %d: %w", table, row, err)
		}
		updated, err := grid.ApplyCells(current, cells)
		if err != nil {
			return err
		}
		updatedJSON, err := encodeCells(updated)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE sheet_rows SET cells = ? WHERE sheet = ? AND position = ?",
			updatedJSON, table, row); err != nil {
			return fmt.Errorf("updating %s row %d: %w", table, row, err)
		}
		return nil
	})
}

// DeleteRow removes the row at position row and shifts later rows up.
func (b *Backend) DeleteRow(ctx context.Context, table string, row int) error {
	return b.withTx(ctx, table, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"DELETE FROM sheet_rows WHERE sheet = ? AND position = ?", table, row)
		if err != nil {
			return fmt.Errorf("deleting %s row %d: %w", table, row, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: row %d", types.ErrRowOutOfRange, row)
		}

		// Renumber through negative positions so the primary key never
		// sees two rows at the same position mid-statement.
		if _, err := tx.ExecContext(ctx,
			"UPDATE sheet_rows SET position = -(position - 1) WHERE sheet = ? AND position > ?",
			table, row); err != nil {
			return fmt.Errorf("renumbering %s: %w", table, err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE sheet_rows SET position = -position WHERE sheet = ? AND position < 0",
			table); err != nil {
			return fmt.Errorf("renumbering %s: %w", table, err)
		}
		return nil
	})
}

// ReplaceTable creates the sheet if needed and overwrites its rows.
func (b *Backend) ReplaceTable(ctx context.Context, table string, values [][]string) error {
	if err := grid.ValidateTable(table); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return types.ErrClosed
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO sheets (name) VALUES (?)", table); err != nil {
		return fmt.Errorf("creating sheet %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sheet_rows WHERE sheet = ?", table); err != nil {
		return fmt.Errorf("clearing sheet %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO sheet_rows (sheet, position, cells) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing insert for %s: %w", table, err)
	}
	defer stmt.Close()

	for i, row := range values {
		cellsJSON, err := encodeCells(row)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, table, i+1, cellsJSON); err != nil {
			return fmt.Errorf("inserting %s row %d: %w", table, i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", table, err)
	}
	return nil
}

// Close closes the database. Idempotent.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

// withTx runs fn in a transaction after checking that the sheet exists.
func (b *Backend) withTx(ctx context.Context, table string, fn func(tx *sql.Tx) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return types.ErrClosed
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := sheetExists(ctx, tx, table); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", table, err)
	}
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sheetExists returns ErrTableNotFound unless the sheet was created.
func sheetExists(ctx context.Context, q queryer, table string) error {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM sheets WHERE name = ?", table).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ErrTableNotFound
	}
	if err != nil {
		return fmt.Errorf("checking sheet %s: %w", table, err)
	}
	return nil
}

func encodeCells(cells []string) (string, error) {
	if cells == nil {
		cells = []string{}
	}
	b, err := json.Marshal(cells)
	if err != nil {
		return "", fmt.Errorf("encoding cells: %w", err)
	}
	return string(b), nil
}

func decodeCells(s string) ([]string, error) {
	cells := []string{}
	if err := json.Unmarshal([]byte(s), &cells); err != nil {
		return nil, err
	}
	return cells, nil
}
