package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/formtrack/internal/workbooktest"
	"github.com/mesh-intelligence/formtrack/pkg/types"
)

func TestBackendConformance(t *testing.T) {
	workbooktest.Run(t, func(t *testing.T) types.Workbook {
		b, err := Open(t.TempDir())
		require.NoError(t, err)
		return b
	})
}

func TestOpen_CreatesDatabaseFile(t *testing.T) {
	dir := t.TempDir()

	b, err := Open(dir)
	require.NoError(t, err)
	defer b.Close()

	_, err = os.Stat(filepath.Join(dir, DBFileName))
	assert.NoError(t, err)
}

func TestData_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, b.ReplaceTable(ctx, types.StatusTable, [][]string{types.StatusHeader}))
	require.NoError(t, b.AppendRow(ctx, types.StatusTable, []string{"e1", "Form One", "Y", "2024-01-01 00:00:00"}))
	require.NoError(t, b.Close())

	b, err = Open(dir)
	require.NoError(t, err)
	defer b.Close()

	got, err := b.Values(ctx, types.StatusTable)
	require.NoError(t, err)
	assert.Equal(t, [][]string{types.StatusHeader, {"e1", "Form One", "Y", "2024-01-01 00:00:00"}}, got)
}

func TestDeleteRow_KeepsPositionsContiguous(t *testing.T) {
	ctx := context.Background()
	b, err := Open(t.TempDir())
	require.NoError(t, err)
	defer b.Close()

	grid := [][]string{{"h"}, {"1"}, {"2"}, {"3"}, {"4"}, {"5"}}
	require.NoError(t, b.ReplaceTable(ctx, "t", grid))
	require.NoError(t, b.DeleteRow(ctx, "t", 2))
	require.NoError(t, b.DeleteRow(ctx, "t", 4))

	var positions []int
	rows, err := b.db.QueryContext(ctx, "SELECT position FROM sheet_rows WHERE sheet = 't' ORDER BY position")
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var p int
		require.NoError(t, rows.Scan(&p))
		positions = append(positions, p)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []int{1, 2, 3, 4}, positions)

	got, err := b.Values(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"h"}, {"2"}, {"3"}, {"5"}}, got)
}
