package jsonl

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/formtrack/internal/workbooktest"
	"github.com/mesh-intelligence/formtrack/pkg/types"
)

func TestWorkbookConformance(t *testing.T) {
	workbooktest.Run(t, func(t *testing.T) types.Workbook {
		wb, err := Open(t.TempDir())
		require.NoError(t, err)
		return wb
	})
}

func TestOpen_CreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	_, err := Open(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFileFormat_OneArrayPerLine(t *testing.T) {
	ctx := context.Background()
	wb, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, wb.ReplaceTable(ctx, types.StatusTable, [][]string{types.StatusHeader}))
	require.NoError(t, wb.AppendRow(ctx, types.StatusTable, []string{"e1", "Form One", "Y", "2024-01-01 00:00:00"}))

	data, err := os.ReadFile(wb.Path(types.StatusTable))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `["id","doc_name","completed_status","timestamp"]`, lines[0])
	assert.Equal(t, `["e1","Form One","Y","2024-01-01 00:00:00"]`, lines[1])
}

func TestValues_SkipsMalformedLines(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	wb, err := Open(dir)
	require.NoError(t, err)

	content := "[\"id\",\"doc_name\"]\n\nnot json\n{\"id\":\"e1\"}\n[\"e2\",\"Form Two\"]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, types.StatusTable+".jsonl"), []byte(content), 0o644))

	got, err := wb.Values(ctx, types.StatusTable)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"id", "doc_name"}, {"e2", "Form Two"}}, got)
}

func TestModify_RefusesMalformedTable(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	wb, err := Open(dir)
	require.NoError(t, err)

	content := "[\"id\",\"doc_name\",\"completed_status\",\"timestamp\"]\nnot json\n[\"e1\",\"Form One\",\"\",\"\"]\n"
	path := filepath.Join(dir, types.StatusTable+".jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tests := []struct {
		name  string
		write func() error
	}{
		{"append", func() error { return wb.AppendRow(ctx, types.StatusTable, []string{"e2"}) }},
		{"update", func() error {
			return wb.UpdateCells(ctx, types.StatusTable, 2, []types.Cell{{Col: 3, Value: "Y"}})
		}},
		{"delete", func() error { return wb.DeleteRow(ctx, types.StatusTable, 2) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.write()
			assert.ErrorIs(t, err, ErrMalformedTable)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, content, string(data), "file must be left as it was")
		})
	}

	require.NoError(t, wb.ReplaceTable(ctx, types.StatusTable, [][]string{types.StatusHeader}))
	require.NoError(t, wb.AppendRow(ctx, types.StatusTable, []string{"e2"}))
}

func TestWrite_LeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	wb, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, wb.ReplaceTable(ctx, types.StatusTable, [][]string{types.StatusHeader}))
	for i := 0; i < 5; i++ {
		require.NoError(t, wb.AppendRow(ctx, types.StatusTable, []string{"e1"}))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, types.StatusTable+".jsonl", entries[0].Name())
}

func TestClosedWorkbookRejectsCalls(t *testing.T) {
	ctx := context.Background()
	wb, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, wb.Close())

	_, err = wb.Values(ctx, types.StatusTable)
	assert.ErrorIs(t, err, types.ErrClosed)
	assert.ErrorIs(t, wb.ReplaceTable(ctx, types.StatusTable, nil), types.ErrClosed)
}
