package types

import (
	"context"
	"strings"
)

// Standard table names.
const (
	MatrixTable   = "training_matrix"
	RegistryTable = "form_links"
	StatusTable   = "training_status"
)

// StandardTableNames lists all standard table names for enumeration.
var StandardTableNames = []string{
	MatrixTable,
	RegistryTable,
	StatusTable,
}

// Requirement matrix columns. Every other matrix column is a document type.
const (
	ColPersonID    = "id"
	ColDisplayName = "full_name"
)

// Document registry columns.
const (
	ColDocNo   = "doc_no"
	ColDocName = "doc_name"
	ColLink    = "link"
)

// Status log columns. The status log shares ColPersonID and ColDocName.
const (
	ColCompleted = "completed_status"
	ColTimestamp = "timestamp"
)

// StatusHeader is the canonical header row of the status log.
var StatusHeader = []string{ColPersonID, ColDocName, ColCompleted, ColTimestamp}

// Literal cell values with meaning to the engine.
const (
	ValueRequired  = "TRUE"
	ValueCompleted = "Y"
)

// TimestampLayout formats status log timestamps (YYYY-MM-DD HH:MM:SS).
const TimestampLayout = "2006-01-02 15:04:05"

// NormalizeColumn returns the lookup key for a header cell: trimmed and
// lower-cased.
func NormalizeColumn(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Row maps normalized column names to cell values.
type Row map[string]string

// Get returns the value of column name, normalizing the name first.
// Missing columns read as the empty string.
func (r Row) Get(name string) string {
	return r[NormalizeColumn(name)]
}

// RowSet is one fetched table. Columns holds the trimmed header cells in
// sheet order; Rows holds data rows keyed by NormalizeColumn(header).
// A RowSet returned by a Source or the cache is shared and must not be
// modified by callers.
type RowSet struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Len returns the number of data rows.
func (rs RowSet) Len() int {
	return len(rs.Rows)
}

// Source fetches named tables as uniform row sets.
type Source interface {
	// Fetch returns every data row of the table. Transport failures are
	// reported as ErrSourceUnavailable.
	Fetch(ctx context.Context, table string) (RowSet, error)
}

// Cell addresses one cell of a row for UpdateCells. Col is 1-based.
type Cell struct {
	Col   int
	Value string
}

// Workbook is the external tabular store: a set of named sheets addressed
// by 1-based row and column indexes where row 1 is the header. It offers no
// transactions and no uniqueness constraints.
type Workbook interface {
	// Values returns the full grid of the table, header row first.
	// Returns ErrTableNotFound if the table does not exist.
	Values(ctx context.Context, table string) ([][]string, error)

	// AppendRow adds a row after the last row of the table.
	AppendRow(ctx context.Context, table string, values []string) error

	// UpdateCells rewrites cells of a single row in one backend write.
	// Returns ErrRowOutOfRange if row or a column lies outside the grid
	// width the backend can address.
	UpdateCells(ctx context.Context, table string, row int, cells []Cell) error

	// DeleteRow removes the row; later rows shift up by one.
	// Returns ErrRowOutOfRange if the row does not exist.
	DeleteRow(ctx context.Context, table string, row int) error

	// ReplaceTable creates the table or overwrites its full contents.
	ReplaceTable(ctx context.Context, table string, values [][]string) error

	// Close releases backend resources. Idempotent.
	Close() error
}
