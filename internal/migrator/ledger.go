package migrator

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"

	"github.com/pocketledger/pocketledger/internal/db"
)

const DefaultTable = "schema_migrations"

var (
	tableRe       = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	ledgerColumns = []string{"version", "description", "checksum", "applied_at", "applied_by", "duration_ms"}
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Ledger is the applied-migrations table living in the migrated database.
// Rows are only ever inserted.
type Ledger struct {
	DB      *sql.DB
	Table   string
	Dialect db.Dialect
}

func (l *Ledger) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(l.Dialect.Placeholder())
}

// Ensure creates the table if absent and checks that its columns are exactly
// the ledger columns. A table with missing or extra columns is reported,
// never repaired.
func (l *Ledger) Ensure(ctx context.Context) error {
	if !tableRe.MatchString(l.Table) {
		return configError(ErrInvalidTable, fmt.Sprintf("%q", l.Table))
	}
	if _, err := l.DB.ExecContext(ctx, l.Dialect.LedgerDDL(l.Table)); err != nil {
		return fmt.Errorf("ensure ledger table: %w", err)
	}
	query, args, err := l.builder().Select("*").From(l.Table).Where("1 = 0").ToSql()
	if err != nil {
		return fmt.Errorf("build ledger probe: %w", err)
	}
	rows, err := l.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return configError(ErrLedgerSchema, fmt.Sprintf("%s: %v", l.Table, err))
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("read ledger columns: %w", err)
	}
	return checkColumns(l.Table, cols)
}

func checkColumns(table string, cols []string) error {
	have := make(map[string]bool, len(cols))
	for _, c := range cols {
		have[strings.ToLower(c)] = true
	}
	var missing []string
	for _, c := range ledgerColumns {
		if !have[c] {
			missing = append(missing, c)
		}
		delete(have, c)
	}
	if len(missing) > 0 {
		return configError(ErrLedgerSchema, fmt.Sprintf("%s: missing columns %s", table, strings.Join(missing, ", ")))
	}
	if len(have) > 0 {
		extra := make([]string, 0, len(have))
		for c := range have {
			extra = append(extra, c)
		}
		sort.Strings(extra)
		return configError(ErrLedgerSchema, fmt.Sprintf("%s: unexpected columns %s", table, strings.Join(extra, ", ")))
	}
	return nil
}

// Applied returns every ledger row ordered by version.
func (l *Ledger) Applied(ctx context.Context) ([]Row, error) {
	query, args, err := l.builder().Select(ledgerColumns...).From(l.Table).OrderBy("version").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ledger query: %w", err)
	}
	var rows []Row
	if err := sqlscan.Select(ctx, l.DB, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return rows, nil
}

// Record inserts r through ex, normally the transaction that ran the script.
func (l *Ledger) Record(ctx context.Context, ex execer, r Row) error {
	query, args, err := l.builder().Insert(l.Table).
		Columns(ledgerColumns...).
		Values(r.Version, r.Description, r.Checksum, r.AppliedAt, r.AppliedBy, r.DurationMS).
		ToSql()
	if err != nil {
		return fmt.Errorf("build ledger insert: %w", err)
	}
	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record version %d: %w", r.Version, err)
	}
	return nil
}
