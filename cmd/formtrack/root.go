package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/formtrack/internal/paths"
	"github.com/mesh-intelligence/formtrack/internal/store"
	"github.com/mesh-intelligence/formtrack/internal/tracker"
	"github.com/mesh-intelligence/formtrack/pkg/types"
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	backend   string
	jsonMode  bool
	logLevel  string
	logFormat string
}

// app carries the state of one CLI invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer
	flags  rootFlags

	// Set by PersistentPreRunE.
	started   bool
	configDir string
	v         *viper.Viper
	cfg       types.Config
	logger    *slog.Logger
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout: stdout,
		stderr: stderr,
		logger: slog.New(slog.DiscardHandler),
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "formtrack",
		Short: "Track which required forms each person has completed",
		Long: `formtrack reconciles a requirement matrix, a document registry and a
status log into per-person completion checklists, and records completions.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	pf.StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: $(CWD)/"+paths.DefaultDataDirName+")")
	pf.StringVar(&a.flags.backend, "backend", "", "workbook backend: jsonl, sqlite, redis or memory")
	pf.BoolVar(&a.flags.jsonMode, "json", false, "output as JSON")
	pf.StringVar(&a.flags.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	pf.StringVar(&a.flags.logFormat, "log-format", "text", "log format: text or json")

	root.AddCommand(
		a.versionCmd(),
		a.initCmd(),
		a.importCmd(),
		a.viewCmd(),
		a.reportCmd(),
		a.markCmd(),
		a.unmarkCmd(),
		a.serveCmd(),
	)
	return root
}

// setup resolves directories, loads the configuration and builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.started = true

	logger, err := newLogger(a.stderr, a.flags.logLevel, a.flags.logFormat)
	if err != nil {
		return &userError{err: err}
	}
	a.logger = logger

	if cmd.Name() == "version" {
		return nil
	}

	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return err
	}
	cfg, err := configFromViper(v, a.flags)
	if err != nil {
		return err
	}

	a.configDir, a.v, a.cfg = configDir, v, cfg
	a.logger.Debug("configuration loaded",
		"config_dir", configDir,
		"data_dir", cfg.DataDir,
		"backend", cfg.Backend,
	)
	return nil
}

// openWorkbook opens the configured backend. The caller must Close it.
func (a *app) openWorkbook(ctx context.Context) (types.Workbook, error) {
	wb, err := store.Open(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s workbook: %w", a.cfg.Backend, err)
	}
	return wb, nil
}

// openService opens the workbook and builds the tracker over it. The caller
// must Close the returned workbook.
func (a *app) openService(ctx context.Context, opts ...tracker.Option) (*tracker.Service, types.Workbook, error) {
	wb, err := a.openWorkbook(ctx)
	if err != nil {
		return nil, nil, err
	}
	svc, err := tracker.Open(wb, a.cfg, append([]tracker.Option{tracker.WithLogger(a.logger)}, opts...)...)
	if err != nil {
		wb.Close()
		return nil, nil, err
	}
	return svc, wb, nil
}
