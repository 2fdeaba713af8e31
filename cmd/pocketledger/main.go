package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/pocketledger/pocketledger/internal/app"
	"github.com/pocketledger/pocketledger/internal/config"
	"github.com/pocketledger/pocketledger/internal/db"
	"github.com/pocketledger/pocketledger/internal/lock"
	"github.com/pocketledger/pocketledger/internal/logger"
	"github.com/pocketledger/pocketledger/internal/migrator"
)

const (
	exitOK        = 0
	exitDrift     = 2
	exitLocked    = 3
	exitFail      = 4
	exitPlanError = 5
)

type flags struct {
	config      string
	dsn         string
	dataDir     string
	dir         string
	json        bool
	dryRun      bool
	lockTimeout int
	table       string
	appliedBy   string
	verbose     bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	var (
		cfgErr  *migrator.ConfigError
		execErr *migrator.ExecutionError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, migrator.ErrDrift):
		return exitDrift
	case errors.Is(err, lock.ErrTimeout):
		return exitLocked
	case errors.As(err, &cfgErr):
		return exitPlanError
	case errors.As(err, &execErr):
		return exitFail
	default:
		return exitFail
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "pocketledger",
		Short:         "Personal finance backend: schema migrations and command dispatch",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.config, "config", "", "Optional YAML config path")
	pf.StringVar(&f.dsn, "dsn", "", "Connection string, e.g. sqlite:main.db (or DB_DSN)")
	pf.StringVar(&f.dataDir, "data-dir", "", "Directory for relative SQLite paths (or DATA_DIR)")
	pf.StringVar(&f.dir, "dir", "", "Load migrations from this directory instead of the built-in schema (or MIGRATIONS_DIR)")
	pf.BoolVar(&f.json, "json", false, "JSON logs")
	pf.BoolVar(&f.dryRun, "dry-run", false, "Plan only; do not execute")
	pf.IntVar(&f.lockTimeout, "lock-timeout", 0, "Lock timeout seconds (or LOCK_TIMEOUT_SEC)")
	pf.StringVar(&f.table, "table", "", "Migrations ledger table name")
	pf.StringVar(&f.appliedBy, "applied-by", "", "Override applied_by value")
	pf.BoolVar(&f.verbose, "verbose", false, "Verbose per-migration logs")

	root.AddCommand(
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, log, err := f.load(cmd)
				if err != nil {
					return err
				}
				a, err := app.Boot(cmd.Context(), cfg, log, f.verbose)
				if err != nil {
					log.Error("migrate failed", map[string]any{"error": err.Error()})
					return err
				}
				defer a.Close()
				if cfg.DryRun {
					log.Info("migrate planned", map[string]any{"pending": len(a.Pending)})
					return nil
				}
				log.Info("migrate complete", map[string]any{"applied": len(a.Applied)})
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, log, err := f.load(cmd)
				if err != nil {
					return err
				}
				return runStatus(cmd.Context(), cfg, log, cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "invoke <command> [json-args]",
			Short: "Boot the backend and dispatch a registered command",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, log, err := f.load(cmd)
				if err != nil {
					return err
				}
				a, err := app.Boot(cmd.Context(), cfg, log, f.verbose)
				if err != nil {
					return err
				}
				defer a.Close()
				var payload json.RawMessage
				if len(args) == 2 {
					payload = json.RawMessage(args[1])
				}
				out, err := a.Invoke(cmd.Context(), args[0], payload)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the application and schema versions",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				v, err := app.Version()
				if err != nil {
					return err
				}
				cfg, _, err := f.load(cmd)
				if err != nil {
					return err
				}
				set, err := app.LoadMigrations(cfg)
				if err != nil {
					return err
				}
				latest, _ := set.Latest()
				fmt.Fprintf(cmd.OutOrStdout(), "pocketledger %s (schema %d)\n", v, latest)
				return nil
			},
		},
	)
	return root
}

// load merges defaults, YAML, environment and flags, in that order.
func (f *flags) load(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadYAML(f.config)
	if err != nil {
		return nil, nil, err
	}
	if cfg, err = config.MergeEnv(cfg); err != nil {
		return nil, nil, err
	}
	fl := cmd.Flags()
	if fl.Changed("dsn") {
		cfg.DSN = f.dsn
	}
	if fl.Changed("data-dir") {
		cfg.DataDir = f.dataDir
	}
	if fl.Changed("dir") {
		cfg.Dir = f.dir
	}
	if fl.Changed("json") {
		cfg.JSON = f.json
	}
	if fl.Changed("dry-run") {
		cfg.DryRun = f.dryRun
	}
	if fl.Changed("lock-timeout") {
		cfg.LockTimeoutSec = f.lockTimeout
	}
	if fl.Changed("table") {
		cfg.MigrationsTable = f.table
	}
	if fl.Changed("applied-by") {
		cfg.AppliedBy = f.appliedBy
	}
	return cfg, logger.NewWithWriter(cmd.ErrOrStderr(), cfg.JSON), nil
}

func runStatus(ctx context.Context, cfg *config.Config, log *logger.Logger, out io.Writer) error {
	set, err := app.LoadMigrations(cfg)
	if err != nil {
		return err
	}
	sqlDB, dialect, err := db.Open(cfg.DSN, cfg.DataDir)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	plan, err := app.NewRunner(cfg, sqlDB, dialect, log, false).Plan(ctx, set)
	if err != nil {
		return err
	}
	printStatus(out, set, plan, log.JSONEnabled())
	return nil
}

func printStatus(out io.Writer, set *migrator.Set, plan *migrator.Plan, asJSON bool) {
	type item struct {
		Version     int64  `json:"version"`
		Description string `json:"description"`
		Status      string `json:"status"` // applied|pending
		Reversible  bool   `json:"reversible"`
		AppliedAt   string `json:"applied_at,omitempty"`
	}
	applied := make(map[int64]migrator.Row, len(plan.Applied))
	for _, r := range plan.Applied {
		applied[r.Version] = r
	}
	items := make([]item, 0, len(plan.All))
	for _, m := range plan.All {
		_, reversible := set.DownFor(m.Version)
		it := item{Version: m.Version, Description: m.Description, Status: "pending", Reversible: reversible}
		if r, ok := applied[m.Version]; ok {
			it.Status = "applied"
			it.AppliedAt = r.AppliedTime().UTC().Format(time.RFC3339)
		}
		items = append(items, it)
	}
	if asJSON {
		_ = json.NewEncoder(out).Encode(items)
		return
	}
	for _, it := range items {
		fmt.Fprintf(out, "%6d %-30s %-8s %s\n", it.Version, it.Description, it.Status, it.AppliedAt)
	}
}
