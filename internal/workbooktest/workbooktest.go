// Package workbooktest provides the behavioral suite every types.Workbook
// backend must pass. Backend packages call Run from their own tests.
package workbooktest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/formtrack/pkg/types"
)

// Factory returns a fresh, empty workbook. Run closes it when each subtest
// finishes.
type Factory func(t *testing.T) types.Workbook

var statusGrid = [][]string{
	{"id", "doc_name", "completed_status", "timestamp"},
	{"e1", "Form One", "Y", "2024-01-01 00:00:00"},
	{"e2", "Form Two", "", ""},
}

// Run executes the conformance suite against workbooks produced by newWorkbook.
func Run(t *testing.T, newWorkbook Factory) {
	open := func(t *testing.T) types.Workbook {
		t.Helper()
		wb := newWorkbook(t)
		t.Cleanup(func() { _ = wb.Close() })
		return wb
	}
	ctx := context.Background()

	t.Run("missing table", func(t *testing.T) {
		wb := open(t)
		_, err := wb.Values(ctx, "nope")
		assert.ErrorIs(t, err, types.ErrTableNotFound)
		assert.ErrorIs(t, wb.AppendRow(ctx, "nope", []string{"x"}), types.ErrTableNotFound)
	})

	t.Run("replace and read back", func(t *testing.T) {
		wb := open(t)
		require.NoError(t, wb.ReplaceTable(ctx, types.StatusTable, statusGrid))

		got, err := wb.Values(ctx, types.StatusTable)
		require.NoError(t, err)
		assert.Equal(t, statusGrid, got)
	})

	t.Run("returned grid is a copy", func(t *testing.T) {
		wb := open(t)
		require.NoError(t, wb.ReplaceTable(ctx, types.StatusTable, statusGrid))

		got, err := wb.Values(ctx, types.StatusTable)
		require.NoError(t, err)
		got[1][0] = "mutated"

		again, err := wb.Values(ctx, types.StatusTable)
		require.NoError(t, err)
		assert.Equal(t, "e1", again[1][0])
	})

	t.Run("replace overwrites", func(t *testing.T) {
		wb := open(t)
		require.NoError(t, wb.ReplaceTable(ctx, types.StatusTable, statusGrid))
		require.NoError(t, wb.ReplaceTable(ctx, types.StatusTable, [][]string{types.StatusHeader}))

		got, err := wb.Values(ctx, types.StatusTable)
		require.NoError(t, err)
		assert.Equal(t, [][]string{types.StatusHeader}, got)
	})

	t.Run("replace with empty grid creates the table", func(t *testing.T) {
		wb := open(t)
		require.NoError(t, wb.ReplaceTable(ctx, types.StatusTable, nil))

		got, err := wb.Values(ctx, types.StatusTable)
		require.NoError(t, err)
		assert.Empty(t, got)

		require.NoError(t, wb.AppendRow(ctx, types.StatusTable, []string{"e1"}))
		got, err = wb.Values(ctx, types.StatusTable)
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"e1"}}, got)
	})

	t.Run("invalid table name", func(t *testing.T) {
		wb := open(t)
		assert.ErrorIs(t, wb.ReplaceTable(ctx, "../escape", statusGrid), types.ErrInvalidTable)
	})

	t.Run("append keeps order", func(t *testing.T) {
		wb := open(t)
		require.NoError(t, wb.ReplaceTable(ctx, types.StatusTable, statusGrid))
		require.NoError(t, wb.AppendRow(ctx, types.StatusTable, []string{"e3", "Form Three", "Y", "2024-02-02 10:00:00"}))
		require.NoError(t, wb.AppendRow(ctx, types.StatusTable, []string{"e4", "ฟอร์ม", "", ""}))

		got, err := wb.Values(ctx, types.StatusTable)
		require.NoError(t, err)
		require.Len(t, got, 5)
		assert.Equal(t, "e3", got[3][0])
		assert.Equal(t, []string{"e4", "ฟอร์ม", "", ""}, got[4])
	})

	t.Run("update cells in place", func(t *testing.T) {
		wb := open(t)
		require.NoError(t, wb.ReplaceTable(ctx, types.StatusTable, statusGrid))
		require.NoError(t, wb.UpdateCells(ctx, types.StatusTable, 3, []types.Cell{
			{Col: 3, Value: "Y"},
			{Col: 4, Value: "2024-03-03 03:03:03"},
		}))

		got, err := wb.Values(ctx, types.StatusTable)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"e2", "Form Two", "Y", "2024-03-03 03:03:03"}, got[2])
		assert.Equal(t, statusGrid[1], got[1])
	})

	t.Run("update grows short rows", func(t *testing.T) {
		wb := open(t)
		require.NoError(t, wb.ReplaceTable(ctx, types.StatusTable, [][]string{types.StatusHeader, {"e1", "Form One"}}))
		require.NoError(t, wb.UpdateCells(ctx, types.StatusTable, 2, []types.Cell{{Col: 4, Value: "ts"}}))

		got, err := wb.Values(ctx, types.StatusTable)
		require.NoError(t, err)
		assert.Equal(t, []string{"e1", "Form One", "", "ts"}, got[1])
	})

	t.Run("update out of range", func(t *testing.T) {
		wb := open(t)
		require.NoError(t, wb.ReplaceTable(ctx, types.StatusTable, statusGrid))
		assert.ErrorIs(t, wb.UpdateCells(ctx, types.StatusTable, 4, []types.Cell{{Col: 1, Value: "x"}}), types.ErrRowOutOfRange)
		assert.ErrorIs(t, wb.UpdateCells(ctx, types.StatusTable, 0, []types.Cell{{Col: 1, Value: "x"}}), types.ErrRowOutOfRange)
	})

	t.Run("delete shifts later rows up", func(t *testing.T) {
		wb := open(t)
		require.NoError(t, wb.ReplaceTable(ctx, types.StatusTable, statusGrid))
		require.NoError(t, wb.AppendRow(ctx, types.StatusTable, []string{"e3", "Form Three", "Y", ""}))
		require.NoError(t, wb.DeleteRow(ctx, types.StatusTable, 3))

		got, err := wb.Values(ctx, types.StatusTable)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "e1", got[1][0])
		assert.Equal(t, "e3", got[2][0])

		require.NoError(t, wb.AppendRow(ctx, types.StatusTable, []string{"e5"}))
		got, err = wb.Values(ctx, types.StatusTable)
		require.NoError(t, err)
		assert.Equal(t, "e5", got[3][0])
	})

	t.Run("delete out of range", func(t *testing.T) {
		wb := open(t)
		require.NoError(t, wb.ReplaceTable(ctx, types.StatusTable, statusGrid))
		assert.ErrorIs(t, wb.DeleteRow(ctx, types.StatusTable, 4), types.ErrRowOutOfRange)

		got, err := wb.Values(ctx, types.StatusTable)
		require.NoError(t, err)
		assert.Equal(t, statusGrid, got)
	})

	t.Run("tables are independent", func(t *testing.T) {
		wb := open(t)
		require.NoError(t, wb.ReplaceTable(ctx, types.StatusTable, statusGrid))
		require.NoError(t, wb.ReplaceTable(ctx, types.RegistryTable, [][]string{{"doc_no", "doc_name", "link"}}))
		require.NoError(t, wb.DeleteRow(ctx, types.StatusTable, 2))

		reg, err := wb.Values(ctx, types.RegistryTable)
		require.NoError(t, err)
		assert.Len(t, reg, 1)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		wb := newWorkbook(t)
		assert.NoError(t, wb.Close())
		assert.NoError(t, wb.Close())
	})
}
