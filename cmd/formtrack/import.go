package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/formtrack/pkg/types"
)

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <table> <file.csv>",
		Short: "Replace a table with the contents of a CSV file",
		Long: `Replace one of the standard tables with a CSV file whose first record is
the header row. Valid tables: ` + strings.Join(types.StandardTableNames, ", ") + `.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, file := args[0], args[1]
			if !slices.Contains(types.StandardTableNames, table) {
				return userErrorf("unknown table %q (valid: %s)", table, strings.Join(types.StandardTableNames, ", "))
			}

			grid, err := readCSV(file)
			if err != nil {
				return err
			}

			wb, err := a.openWorkbook(cmd.Context())
			if err != nil {
				return err
			}
			defer wb.Close()

			if err := wb.ReplaceTable(cmd.Context(), table, grid); err != nil {
				return fmt.Errorf("replace %s: %w", table, err)
			}
			rows := max(len(grid)-1, 0)
			a.logger.InfoContext(cmd.Context(), "table imported", "table", table, "rows", rows, "file", file)

			return a.output(map[string]any{"table": table, "rows": rows}, func(w io.Writer) {
				fmt.Fprintf(w, "imported %d rows into %s\n", rows, table)
			})
		},
	}
}

// readCSV loads every record of file. Records may have different lengths.
func readCSV(file string) ([][]string, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, userErrorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	grid, err := r.ReadAll()
	if err != nil {
		return nil, userErrorf("parse %s: %w", file, err)
	}
	if len(grid) == 0 {
		return nil, userErrorf("%s is empty; the first record must be the header", file)
	}
	// Excel-exported files start with a byte order mark.
	grid[0][0] = strings.TrimPrefix(grid[0][0], "\ufeff")
	return grid, nil
}
