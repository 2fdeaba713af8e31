package migrator

import (
	"errors"
	"fmt"
)

var (
	ErrNoMigrations     = errors.New("no migration set")
	ErrInvalidVersion   = errors.New("invalid version")
	ErrInvalidKind      = errors.New("invalid migration kind")
	ErrDuplicateVersion = errors.New("duplicate version")
	ErrOutOfOrder       = errors.New("versions out of order")
	ErrOrphanDown       = errors.New("down migration without matching up")
	ErrInvalidTable     = errors.New("invalid ledger table name")
	ErrLedgerSchema     = errors.New("ledger table has unexpected schema")
	ErrUnknownVersion   = errors.New("applied version missing from migration set")
	ErrDrift            = errors.New("checksum drift detected")
	ErrLedgerGap        = errors.New("applied versions are not a prefix of the migration set")
)

// ConfigError reports a malformed migration list or a ledger that does not
// agree with it. Nothing has been executed when it is returned.
type ConfigError struct {
	Err        error
	Version    int64
	HasVersion bool
	Detail     string
}

func (e *ConfigError) Error() string {
	msg := "migration config: " + e.Err.Error()
	if e.HasVersion {
		msg += fmt.Sprintf(" (version %d)", e.Version)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// configError reports a problem with the list or ledger as a whole.
func configError(err error, detail string) error {
	return &ConfigError{Err: err, Detail: detail}
}

func versionError(err error, version int64, detail string) error {
	return &ConfigError{Err: err, Version: version, HasVersion: true, Detail: detail}
}

// ExecutionError reports a migration whose script or ledger write failed.
// Its transaction was rolled back; earlier migrations stay applied.
type ExecutionError struct {
	Version     int64
	Description string
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("migration %d (%s) failed: %v", e.Version, e.Description, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
