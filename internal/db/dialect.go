package db

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// Dialect identifies the SQL flavour behind a connection.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
)

// Placeholder returns the bind-parameter style used by the dialect.
func (d Dialect) Placeholder() sq.PlaceholderFormat {
	if d == Postgres {
		return sq.Dollar
	}
	return sq.Question
}

// LedgerDDL returns the statement that creates the applied-migrations table.
func (d Dialect) LedgerDDL(table string) string {
	switch d {
	case MySQL:
		return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  version BIGINT PRIMARY KEY,
  description VARCHAR(255) NOT NULL,
  checksum CHAR(64) NOT NULL,
  applied_at BIGINT NOT NULL,
  applied_by VARCHAR(255) NOT NULL,
  duration_ms BIGINT NOT NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`, table)
	case Postgres:
		return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  version BIGINT PRIMARY KEY,
  description TEXT NOT NULL,
  checksum TEXT NOT NULL,
  applied_at BIGINT NOT NULL,
  applied_by TEXT NOT NULL,
  duration_ms BIGINT NOT NULL
);
`, table)
	default:
		return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  version INTEGER PRIMARY KEY,
  description TEXT NOT NULL,
  checksum TEXT NOT NULL,
  applied_at INTEGER NOT NULL,
  applied_by TEXT NOT NULL,
  duration_ms INTEGER NOT NULL
);
`, table)
	}
}
