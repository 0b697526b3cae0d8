// Package store opens the Workbook backend selected by the configuration.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/formtrack/internal/jsonl"
	"github.com/mesh-intelligence/formtrack/internal/memory"
	"github.com/mesh-intelligence/formtrack/internal/redis"
	"github.com/mesh-intelligence/formtrack/internal/sqlite"
	"github.com/mesh-intelligence/formtrack/pkg/types"
)

// Open validates cfg and returns the configured workbook. The caller must
// Close it.
//
// Example:
//
//	wb, err := store.Open(ctx, types.Config{
//	    Backend: types.BackendJSONL,
//	    DataDir: ".formtrack-db",
//	})
//	defer wb.Close()
func Open(ctx context.Context, cfg types.Config) (types.Workbook, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case types.BackendJSONL:
		return jsonl.Open(cfg.DataDir)
	case types.BackendSQLite:
		return sqlite.Open(cfg.DataDir)
	case types.BackendRedis:
		return redis.Dial(ctx, cfg.Redis.URL, cfg.Redis.Prefix)
	case types.BackendMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrBackendUnknown, cfg.Backend)
	}
}

// InitTables creates each standard table that does not exist yet, writing
// only its header row. Existing tables are left untouched. It returns the
// names of the tables it created.
func InitTables(ctx context.Context, wb types.Workbook) ([]string, error) {
	headers := map[string][]string{
		types.MatrixTable:   {types.ColPersonID, types.ColDisplayName},
		types.RegistryTable: {types.ColDocNo, types.ColDocName, types.ColLink},
		types.StatusTable:   types.StatusHeader,
	}

	var created []string
	for _, table := range types.StandardTableNames {
		_, err := wb.Values(ctx, table)
		if err == nil {
			continue
		}
		if !errors.Is(err, types.ErrTableNotFound) {
			return created, fmt.Errorf("checking %s: %w", table, err)
		}
		if err := wb.ReplaceTable(ctx, table, [][]string{headers[table]}); err != nil {
			return created, fmt.Errorf("creating %s: %w", table, err)
		}
		created = append(created, table)
	}
	return created, nil
}
