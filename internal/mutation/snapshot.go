package mutation

import (
	"strings"

	"github.com/mesh-intelligence/formtrack/internal/sheet"
	"github.com/mesh-intelligence/formtrack/pkg/types"
)

// snapshot is one fresh read of the status table with its column layout
// resolved from the header.
type snapshot struct {
	values [][]string

	idCol        int
	docNameCol   int
	completedCol int
	timestampCol int
}

func newSnapshot(values [][]string) *snapshot {
	s := &snapshot{values: values}
	var header []string
	if len(values) > 0 {
		header = values[0]
	}
	s.idCol = columnOr(header, types.ColPersonID, 1)
	s.docNameCol = columnOr(header, types.ColDocName, 2)
	s.completedCol = columnOr(header, types.ColCompleted, 3)
	s.timestampCol = columnOr(header, types.ColTimestamp, 4)
	return s
}

// empty reports whether the table has no rows at all, not even a header.
func (s *snapshot) empty() bool {
	return len(s.values) == 0
}

// find returns the 1-based sheet row of the first record matching the pair
// and the number of matching records. Matching trims both cells and is
// case-sensitive.
func (s *snapshot) find(personID, documentName string) (int, int) {
	if len(s.values) < 2 {
		return 0, 0
	}
	first, n := 0, 0
	for i, row := range s.values[1:] {
		if strings.TrimSpace(cell(row, s.idCol)) != personID ||
			strings.TrimSpace(cell(row, s.docNameCol)) != documentName {
			continue
		}
		if n == 0 {
			first = i + 2
		}
		n++
	}
	return first, n
}

// record lays out a new completed row in the table's column order.
func (s *snapshot) record(personID, documentName, stamp string) []string {
	width := max(s.idCol, s.docNameCol, s.completedCol, s.timestampCol)
	if !s.empty() && len(s.values[0]) > width {
		width = len(s.values[0])
	}
	row := make([]string, width)
	row[s.idCol-1] = personID
	row[s.docNameCol-1] = documentName
	row[s.completedCol-1] = types.ValueCompleted
	row[s.timestampCol-1] = stamp
	return row
}

func columnOr(header []string, name string, fallback int) int {
	if i := sheet.ColumnIndex(header, name); i > 0 {
		return i
	}
	return fallback
}

func cell(row []string, col int) string {
	if col < 1 || col > len(row) {
		return ""
	}
	return row[col-1]
}
