package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/formtrack/internal/store"
)

func (a *app) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration and the standard tables",
		Long: `Create the configuration directory with a default config.yaml, then create
the training_matrix, form_links and training_status tables with their header
rows. Existing tables are left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wb, err := a.openWorkbook(cmd.Context())
			if err != nil {
				return err
			}
			defer wb.Close()

			created, err := store.InitTables(cmd.Context(), wb)
			if err != nil {
				return fmt.Errorf("init tables: %w", err)
			}

			return a.output(map[string]any{
				"config_dir": a.configDir,
				"data_dir":   a.cfg.DataDir,
				"backend":    a.cfg.Backend,
				"created":    created,
			}, func(w io.Writer) {
				fmt.Fprintln(w, "formtrack initialized")
				fmt.Fprintln(w, "  config: ", a.configDir)
				fmt.Fprintln(w, "  data:   ", a.cfg.DataDir)
				fmt.Fprintln(w, "  backend:", a.cfg.Backend)
				for _, t := range created {
					fmt.Fprintln(w, "  created:", t)
				}
			})
		},
	}
}
