package migrator

import "time"

// Kind tags a migration as forward (Up) or reverting (Down).
type Kind int

const (
	Up Kind = iota
	Down
)

func (k Kind) String() string {
	switch k {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "unknown"
	}
}

// Migration is one versioned schema change.
type Migration struct {
	Version     int64
	Description string
	SQL         string
	Kind        Kind
}

// Row is one ledger entry: a version that was applied successfully.
type Row struct {
	Version     int64  `db:"version"`
	Description string `db:"description"`
	Checksum    string `db:"checksum"`
	AppliedAt   int64  `db:"applied_at"` // unix milliseconds
	AppliedBy   string `db:"applied_by"`
	DurationMS  int64  `db:"duration_ms"`
}

func (r Row) AppliedTime() time.Time { return time.UnixMilli(r.AppliedAt) }
