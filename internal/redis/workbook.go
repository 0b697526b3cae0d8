// Package redis implements a Workbook on Redis. Each sheet is a list of JSON
// encoded rows under "<prefix>:sheet:<table>"; the set "<prefix>:sheets"
// records which sheets exist so an empty sheet is still a sheet.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/mesh-intelligence/formtrack/internal/grid"
	"github.com/mesh-intelligence/formtrack/pkg/types"
)

var _ types.Workbook = (*Workbook)(nil)

// Workbook stores sheets as Redis lists.
type Workbook struct {
	client    *goredis.Client
	prefix    string
	ownClient bool
	closeOnce sync.Once
	closeErr  error
}

// New wraps an existing client. The client lifecycle stays with the caller.
func New(client *goredis.Client, prefix string) *Workbook {
	if prefix == "" {
		prefix = types.DefaultRedisPrefix
	}
	return &Workbook{client: client, prefix: prefix}
}

// Dial connects to the server at url, verifies the connection, and returns a
// workbook that closes the client on Close.
func Dial(ctx context.Context, url, prefix string) (*Workbook, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	wb := New(client, prefix)
	wb.ownClient = true
	return wb, nil
}

func (w *Workbook) sheetsKey() string {
	return w.prefix + ":sheets"
}

func (w *Workbook) sheetKey(table string) string {
	return w.prefix + ":sheet:" + table
}

// Values returns the full list decoded into rows.
func (w *Workbook) Values(ctx context.Context, table string) ([][]string, error) {
	if err := w.exists(ctx, w.client, table); err != nil {
		return nil, err
	}
	encoded, err := w.client.LRange(ctx, w.sheetKey(table), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", table, err)
	}
	out := make([][]string, 0, len(encoded))
	for i, s := range encoded {
		row, err := decodeRow(s)
		if err != nil {
			return nil, fmt.Errorf("decoding %s row %d: %w", table, i+1, err)
		}
		out = append(out, row)
	}
	return out, nil
}

// AppendRow pushes a row onto the end of the list.
func (w *Workbook) AppendRow(ctx context.Context, table string, values []string) error {
	if err := w.exists(ctx, w.client, table); err != nil {
		return err
	}
	encoded, err := encodeRow(values)
	if err != nil {
		return err
	}
	if err := w.client.RPush(ctx, w.sheetKey(table), encoded).Err(); err != nil {
		return fmt.Errorf("appending to %s: %w", table, err)
	}
	return nil
}

// UpdateCells rewrites one list element under WATCH so a concurrent writer
// to the same sheet aborts this update instead of being overwritten.
func (w *Workbook) UpdateCells(ctx context.Context, table string, row int, cells []types.Cell) error {
	key := w.sheetKey(table)
	err := w.client.Watch(ctx, func(tx *goredis.Tx) error {
		if err := w.exists(ctx, tx, table); err != nil {
			return err
		}
		if row < 1 {
			return fmt.Errorf("%w: row %d", types.ErrRowOutOfRange, row)
		}
		current, err := tx.LIndex(ctx, key, int64(row-1)).Result()
		if errors.Is(err, goredis.Nil) {
			return fmt.Errorf("%w: row %d", types.ErrRowOutOfRange, row)
		}
		if err != nil {
			return fmt.Errorf("reading %s row %d: %w", table, row, err)
		}
		decoded, err := decodeRow(current)
		if err != nil {
			return fmt.Errorf("decoding %s row %d: %w", table, row, err)
		}
		updated, err := grid.ApplyCells(decoded, cells)
		if err != nil {
			return err
		}
		encoded, err := encodeRow(updated)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.LSet(ctx, key, int64(row-1), encoded)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("updating %s row %d: %w", table, row, err)
	}
	return nil
}

// DeleteRow replaces the element with a unique tombstone and removes the
// tombstone in the same MULTI block; Redis lists have no delete-by-index.
func (w *Workbook) DeleteRow(ctx context.Context, table string, row int) error {
	key := w.sheetKey(table)
	tombstone := "\x00deleted:" + uuid.NewString()
	err := w.client.Watch(ctx, func(tx *goredis.Tx) error {
		if err := w.exists(ctx, tx, table); err != nil {
			return err
		}
		n, err := tx.LLen(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("reading %s length: %w", table, err)
		}
		if row < 1 || int64(row) > n {
			return fmt.Errorf("%w: row %d of %d", types.ErrRowOutOfRange, row, n)
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.LSet(ctx, key, int64(row-1), tombstone)
			pipe.LRem(ctx, key, 1, tombstone)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("deleting %s row %d: %w", table, row, err)
	}
	return nil
}

// ReplaceTable registers the sheet and rewrites its list atomically.
func (w *Workbook) ReplaceTable(ctx context.Context, table string, values [][]string) error {
	if err := grid.ValidateTable(table); err != nil {
		return err
	}
	encoded := make([]any, 0, len(values))
	for _, row := range values {
		s, err := encodeRow(row)
		if err != nil {
			return err
		}
		encoded = append(encoded, s)
	}

	key := w.sheetKey(table)
	_, err := w.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.SAdd(ctx, w.sheetsKey(), table)
		pipe.Del(ctx, key)
		if len(encoded) > 0 {
			pipe.RPush(ctx, key, encoded...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replacing %s: %w", table, err)
	}
	return nil
}

// Close closes the client when the workbook dialed it. Idempotent.
func (w *Workbook) Close() error {
	w.closeOnce.Do(func() {
		if w.ownClient {
			w.closeErr = w.client.Close()
		}
	})
	return w.closeErr
}

// memberChecker is satisfied by *goredis.Client and *goredis.Tx.
type memberChecker interface {
	SIsMember(ctx context.Context, key string, member interface{}) *goredis.BoolCmd
}

// exists returns ErrTableNotFound unless table is in the sheets set.
func (w *Workbook) exists(ctx context.Context, c memberChecker, table string) error {
	ok, err := c.SIsMember(ctx, w.sheetsKey(), table).Result()
	if err != nil {
		return fmt.Errorf("checking sheet %s: %w", table, err)
	}
	if !ok {
		return types.ErrTableNotFound
	}
	return nil
}

func encodeRow(row []string) (string, error) {
	if row == nil {
		row = []string{}
	}
	b, err := json.Marshal(row)
	if err != nil {
		return "", fmt.Errorf("encoding row: %w", err)
	}
	return string(b), nil
}

func decodeRow(s string) ([]string, error) {
	row := []string{}
	if err := json.Unmarshal([]byte(s), &row); err != nil {
		return nil, err
	}
	return row, nil
}
