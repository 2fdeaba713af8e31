// Package app boots the backend: configuration, database, schema
// migrations and the command registry, in that order.
package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver"

	"github.com/pocketledger/pocketledger/internal/commands"
	"github.com/pocketledger/pocketledger/internal/config"
	"github.com/pocketledger/pocketledger/internal/db"
	"github.com/pocketledger/pocketledger/internal/lock"
	"github.com/pocketledger/pocketledger/internal/logger"
	"github.com/pocketledger/pocketledger/internal/migrator"
	"github.com/pocketledger/pocketledger/internal/schema"
)

// version is set at build time with -ldflags "-X .../internal/app.version=x.y.z".
var version = "0.1.0"

func Version() (*semver.Version, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("parse build version %q: %w", version, err)
	}
	return v, nil
}

type App struct {
	DB       *sql.DB
	Dialect  db.Dialect
	Commands *commands.Registry
	Applied  []migrator.Row
	// Pending lists what a dry run would apply.
	Pending []migrator.Migration

	log *logger.Logger
}

// Boot brings the database to the latest schema and registers commands.
// Any failure aborts startup; the connection is closed before returning.
// With cfg.DryRun set nothing is migrated, Pending is filled in and the SQL
// commands are only registered if the schema is already current.
func Boot(ctx context.Context, cfg *config.Config, log *logger.Logger, verbose bool) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	set, err := LoadMigrations(cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, dialect, err := db.Open(cfg.DSN, cfg.DataDir)
	if err != nil {
		return nil, err
	}

	a := &App{DB: sqlDB, Dialect: dialect, Commands: commands.NewRegistry(), log: log}
	err = WithLock(ctx, cfg, sqlDB, dialect, func() error {
		r := NewRunner(cfg, sqlDB, dialect, log, verbose)
		var runErr error
		if a.Applied, runErr = r.Run(ctx, set); runErr != nil || !cfg.DryRun {
			return runErr
		}
		p, runErr := r.Plan(ctx, set)
		if runErr != nil {
			return runErr
		}
		a.Pending = p.Pending
		return nil
	})
	if err == nil {
		err = a.registerCommands()
	}
	if err != nil {
		return nil, errors.Join(err, sqlDB.Close())
	}

	if cfg.DryRun {
		log.Info("dry run complete", map[string]any{
			"dialect": string(dialect),
			"pending": len(a.Pending),
		})
		return a, nil
	}
	latest, _ := set.Latest()
	log.Info("database ready", map[string]any{
		"dialect":        string(dialect),
		"applied":        len(a.Applied),
		"schema_version": latest,
	})
	return a, nil
}

func (a *App) registerCommands() error {
	if err := commands.RegisterDefaults(a.Commands); err != nil {
		return err
	}
	if len(a.Pending) > 0 {
		return nil
	}
	return commands.RegisterSQL(a.Commands, a.DB)
}

func (a *App) Invoke(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	return a.Commands.Invoke(ctx, name, args)
}

func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

// LoadMigrations returns the compiled-in schema, or the scripts in cfg.Dir
// when one is configured.
func LoadMigrations(cfg *config.Config) (*migrator.Set, error) {
	if cfg.Dir != "" {
		return migrator.FileSource{RootDir: cfg.Dir}.Load()
	}
	return schema.Migrations()
}

// NewRunner configures a runner from cfg. With verbose set, every migration
// step is logged.
func NewRunner(cfg *config.Config, sqlDB *sql.DB, dialect db.Dialect, log *logger.Logger, verbose bool) *migrator.Runner {
	r := migrator.NewRunner(sqlDB, dialect, cfg.MigrationsTable, cfg.AppliedBy)
	r.DryRun = cfg.DryRun
	if verbose {
		r.Progress = func(stage string, m migrator.Migration, row *migrator.Row, err error) {
			fields := map[string]any{
				"version":     m.Version,
				"description": m.Description,
			}
			if row != nil && stage == "success" {
				fields["duration_ms"] = row.DurationMS
			}
			if err != nil {
				fields["error"] = err.Error()
				log.Error("migrate.error", fields)
				return
			}
			log.Info("migrate."+stage, fields)
		}
	}
	return r
}

// WithLock runs fn while holding the cross-process migration lock.
func WithLock(ctx context.Context, cfg *config.Config, sqlDB *sql.DB, dialect db.Dialect, fn func() error) error {
	l := lock.New(dialect, sqlDB, lock.KeyFor(databaseName(cfg.DSN), cfg.MigrationsTable))
	if err := l.Acquire(ctx, cfg.LockTimeout()); err != nil {
		return fmt.Errorf("acquire migration lock %s: %w", l.Key(), err)
	}
	defer func() { _ = l.Release(ctx) }()
	return fn()
}

func databaseName(dsn string) string {
	// naive extraction: last path segment without query
	// user:pass@tcp(127.0.0.1:3306)/dbname?params, postgres://host/dbname
	i := strings.LastIndex(dsn, "/")
	if i == -1 || i == len(dsn)-1 {
		return "db"
	}
	rest := dsn[i+1:]
	if j := strings.Index(rest, "?"); j != -1 {
		return rest[:j]
	}
	return rest
}
