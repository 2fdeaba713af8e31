package migrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os/user"
	"strings"
	"time"

	"github.com/pocketledger/pocketledger/internal/checksum"
	"github.com/pocketledger/pocketledger/internal/db"
)

// ProgressFunc observes a run. stage is "start", "success" or "error", or
// "planned" with a nil row when DryRun is set.
type ProgressFunc func(stage string, m Migration, row *Row, err error)

// Runner applies a migration Set to one database connection. It assumes it
// is the only writer for the duration of Run.
type Runner struct {
	DB        *sql.DB
	Ledger    *Ledger
	AppliedBy string
	DryRun    bool
	Progress  ProgressFunc

	now func() time.Time
}

func NewRunner(database *sql.DB, dialect db.Dialect, table string, appliedBy string) *Runner {
	if table == "" {
		table = DefaultTable
	}
	return &Runner{
		DB:        database,
		Ledger:    &Ledger{DB: database, Table: table, Dialect: dialect},
		AppliedBy: appliedBy,
		now:       time.Now,
	}
}

// Run applies set with default options on database and returns the rows it
// recorded.
func Run(ctx context.Context, database *sql.DB, dialect db.Dialect, set *Set) ([]Row, error) {
	return NewRunner(database, dialect, DefaultTable, "").Run(ctx, set)
}

func defaultAppliedBy() string {
	u, err := user.Current()
	if err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

func (r *Runner) Ensure(ctx context.Context) error {
	if err := r.Ledger.Ensure(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(r.AppliedBy) == "" {
		r.AppliedBy = defaultAppliedBy()
	}
	return nil
}

// Plan ensures the ledger and reports what Run would apply.
func (r *Runner) Plan(ctx context.Context, set *Set) (*Plan, error) {
	if set == nil {
		return nil, configError(ErrNoMigrations, "")
	}
	if err := r.Ensure(ctx); err != nil {
		return nil, err
	}
	applied, err := r.Ledger.Applied(ctx)
	if err != nil {
		return nil, err
	}
	return plan(set, applied)
}

// Run brings the database up to the latest version in set. Each migration
// runs in its own transaction together with its ledger row; the first
// failure stops the run with an *ExecutionError. With DryRun set nothing is
// executed or recorded and the returned slice is empty; use Plan to see what
// is pending.
func (r *Runner) Run(ctx context.Context, set *Set) ([]Row, error) {
	p, err := r.Plan(ctx, set)
	if err != nil {
		return nil, err
	}
	if r.DryRun {
		for _, m := range p.Pending {
			r.progress("planned", m, nil, nil)
		}
		return []Row{}, nil
	}
	applied := make([]Row, 0, len(p.Pending))
	for _, m := range p.Pending {
		row, err := r.apply(ctx, m)
		if err != nil {
			r.progress("error", m, &row, err)
			return applied, err
		}
		r.progress("success", m, &row, nil)
		applied = append(applied, row)
	}
	return applied, nil
}

func (r *Runner) apply(ctx context.Context, m Migration) (Row, error) {
	start := r.now()
	row := Row{
		Version:     m.Version,
		Description: m.Description,
		Checksum:    checksum.Script(m.SQL),
		AppliedAt:   start.UnixMilli(),
		AppliedBy:   r.AppliedBy,
	}
	r.progress("start", m, &row, nil)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return row, r.failed(m, fmt.Errorf("begin: %w", err))
	}
	if strings.TrimSpace(m.SQL) != "" {
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			return row, r.failed(m, rollback(tx, err))
		}
	}
	row.DurationMS = r.now().Sub(start).Milliseconds()
	if err := r.Ledger.Record(ctx, tx, row); err != nil {
		return row, r.failed(m, rollback(tx, err))
	}
	if err := tx.Commit(); err != nil {
		return row, r.failed(m, fmt.Errorf("commit: %w", err))
	}
	return row, nil
}

func (r *Runner) failed(m Migration, err error) error {
	return &ExecutionError{Version: m.Version, Description: m.Description, Err: err}
}

func (r *Runner) progress(stage string, m Migration, row *Row, err error) {
	if r.Progress != nil {
		r.Progress(stage, m, row, err)
	}
}

func rollback(tx *sql.Tx, err error) error {
	if rbErr := tx.Rollback(); rbErr != nil {
		return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
	}
	return err
}
