package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/pocketledger/pocketledger/internal/db"
)

var ErrTimeout = errors.New("advisory lock wait timeout")

// Locker serializes migration runs across processes sharing a database.
type Locker interface {
	Acquire(ctx context.Context, timeout time.Duration) error
	Release(ctx context.Context) error
	Key() string
}

// New picks the lock implementation for dialect.
func New(dialect db.Dialect, database *sql.DB, key string) Locker {
	switch dialect {
	case db.MySQL:
		return NewMySQL(database, key)
	case db.Postgres:
		return NewPostgres(database, key)
	default:
		return Noop{key: key}
	}
}

// MySQL advisory lock using GET_LOCK/RELEASE_LOCK on a dedicated connection.
type MySQL struct {
	db   *sql.DB
	conn *sql.Conn
	key  string
	held bool
}

func NewMySQL(database *sql.DB, key string) *MySQL {
	return &MySQL{db: database, key: key}
}

func (m *MySQL) Acquire(ctx context.Context, timeout time.Duration) error {
	if m.held {
		return nil
	}
	var err error
	m.conn, err = m.db.Conn(ctx)
	if err != nil {
		return err
	}
	// GET_LOCK(name, timeout_seconds)
	row := m.conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", m.key, int(timeout.Seconds()))
	var got sql.NullInt64
	if err := row.Scan(&got); err != nil {
		_ = m.conn.Close()
		return err
	}
	if !got.Valid || got.Int64 != 1 {
		_ = m.conn.Close()
		return fmt.Errorf("%w: %s", ErrTimeout, m.key)
	}
	m.held = true
	return nil
}

func (m *MySQL) Release(ctx context.Context) error {
	if !m.held || m.conn == nil {
		return nil
	}
	row := m.conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", m.key)
	var rel sql.NullInt64
	_ = row.Scan(&rel) // do not fail on release
	m.held = false
	return m.conn.Close()
}

func (m *MySQL) Key() string { return m.key }

// Postgres session-level advisory lock. pg_try_advisory_lock is polled so
// the wait honours timeout.
type Postgres struct {
	db       *sql.DB
	conn     *sql.Conn
	key      string
	held     bool
	interval time.Duration
}

func NewPostgres(database *sql.DB, key string) *Postgres {
	return &Postgres{db: database, key: key, interval: 250 * time.Millisecond}
}

func (p *Postgres) Acquire(ctx context.Context, timeout time.Duration) error {
	if p.held {
		return nil
	}
	var err error
	p.conn, err = p.db.Conn(ctx)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(timeout)
	id := keyID(p.key)
	for {
		var got bool
		if err := p.conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", id).Scan(&got); err != nil {
			_ = p.conn.Close()
			return err
		}
		if got {
			p.held = true
			return nil
		}
		if !time.Now().Before(deadline) {
			_ = p.conn.Close()
			return fmt.Errorf("%w: %s", ErrTimeout, p.key)
		}
		select {
		case <-ctx.Done():
			_ = p.conn.Close()
			return ctx.Err()
		case <-time.After(p.interval):
		}
	}
}

func (p *Postgres) Release(ctx context.Context) error {
	if !p.held || p.conn == nil {
		return nil
	}
	_, _ = p.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", keyID(p.key))
	p.held = false
	return p.conn.Close()
}

func (p *Postgres) Key() string { return p.key }

// Noop is used for SQLite, where the pool holds a single connection that
// the runner already owns.
type Noop struct{ key string }

func (Noop) Acquire(context.Context, time.Duration) error { return nil }
func (Noop) Release(context.Context) error                { return nil }
func (n Noop) Key() string                                { return n.key }

func KeyFor(database, table string) string {
	return fmt.Sprintf("pocketledger:%s:%s", database, table)
}

func keyID(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64())
}
