// Package grid holds the positional row operations shared by the in-process
// workbook backends. A grid is a [][]string whose first row is the header;
// rows are addressed 1-based.
package grid

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/formtrack/pkg/types"
)

// ValidateTable rejects names that cannot be used as a sheet, file, or key
// name.
func ValidateTable(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, `/\:`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", types.ErrInvalidTable, name)
	}
	return nil
}

// Clone returns a deep copy so callers never share row slices with the
// backend.
func Clone(g [][]string) [][]string {
	out := make([][]string, len(g))
	for i, row := range g {
		out[i] = append([]string(nil), row...)
	}
	return out
}

// CheckRow returns ErrRowOutOfRange unless 1 <= row <= len(g).
func CheckRow(g [][]string, row int) error {
	if row < 1 || row > len(g) {
		return fmt.Errorf("%w: row %d of %d", types.ErrRowOutOfRange, row, len(g))
	}
	return nil
}

// ApplyCells writes cells into row, growing the row when a column lies past
// its current width. It returns the updated row.
func ApplyCells(row []string, cells []types.Cell) ([]string, error) {
	out := append([]string(nil), row...)
	for _, c := range cells {
		if c.Col < 1 {
			return nil, fmt.Errorf("%w: column %d", types.ErrRowOutOfRange, c.Col)
		}
		for len(out) < c.Col {
			out = append(out, "")
		}
		out[c.Col-1] = c.Value
	}
	return out, nil
}

// Update applies cells to the 1-based row of g in place.
func Update(g [][]string, row int, cells []types.Cell) error {
	if err := CheckRow(g, row); err != nil {
		return err
	}
	updated, err := ApplyCells(g[row-1], cells)
	if err != nil {
		return err
	}
	g[row-1] = updated
	return nil
}

// Delete removes the 1-based row and returns the shortened grid.
func Delete(g [][]string, row int) ([][]string, error) {
	if err := CheckRow(g, row); err != nil {
		return nil, err
	}
	return append(g[:row-1], g[row:]...), nil
}
