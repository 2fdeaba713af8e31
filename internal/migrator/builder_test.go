package migrator

import (
	"errors"
	"testing"
)

func TestBuildValidList(t *testing.T) {
	set, err := NewBuilder().
		Up(1, "create", "CREATE TABLE t(id INT);").
		Up(2, "alter", "ALTER TABLE t ADD COLUMN c INT;").
		Down(2, "alter", "ALTER TABLE t DROP COLUMN c;").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if set.Len() != 2 {
		t.Fatalf("expected 2 up migrations, got %d", set.Len())
	}
	if latest, ok := set.Latest(); !ok || latest != 2 {
		t.Fatalf("expected latest 2, got %d", latest)
	}
	if _, ok := set.DownFor(2); !ok {
		t.Fatal("expected down script for version 2")
	}
	if _, ok := set.DownFor(1); ok {
		t.Fatal("version 1 has no down script")
	}
	if m, ok := set.Lookup(1); !ok || m.Description != "create" {
		t.Fatalf("lookup mismatch: %#v", m)
	}

	all := set.All()
	all[0].SQL = "mutated"
	if m, _ := set.Lookup(1); m.SQL == "mutated" {
		t.Fatal("All must return a copy")
	}
}

func TestBuildEmptyList(t *testing.T) {
	set, err := NewBuilder().Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := set.Latest(); ok {
		t.Fatal("empty set has no latest version")
	}
}

func TestBuildRejectsBadLists(t *testing.T) {
	tests := []struct {
		name    string
		build   func() *Builder
		wantErr error
		version int64
	}{
		{
			name: "duplicate up",
			build: func() *Builder {
				return NewBuilder().Up(1, "a", "").Up(2, "b", "").Up(1, "c", "")
			},
			wantErr: ErrDuplicateVersion,
			version: 1,
		},
		{
			name: "adjacent duplicate",
			build: func() *Builder {
				return NewBuilder().Up(3, "a", "").Up(3, "b", "")
			},
			wantErr: ErrDuplicateVersion,
			version: 3,
		},
		{
			name: "descending",
			build: func() *Builder {
				return NewBuilder().Up(2, "b", "").Up(1, "a", "")
			},
			wantErr: ErrOutOfOrder,
			version: 1,
		},
		{
			name: "negative version",
			build: func() *Builder {
				return NewBuilder().Up(-1, "a", "")
			},
			wantErr: ErrInvalidVersion,
			version: -1,
		},
		{
			name: "down without up",
			build: func() *Builder {
				return NewBuilder().Up(1, "a", "").Down(2, "b", "")
			},
			wantErr: ErrOrphanDown,
			version: 2,
		},
		{
			name: "duplicate down",
			build: func() *Builder {
				return NewBuilder().Up(1, "a", "").Down(1, "a", "").Down(1, "a", "")
			},
			wantErr: ErrDuplicateVersion,
			version: 1,
		},
		{
			name: "unknown kind",
			build: func() *Builder {
				return NewBuilder().Add(Migration{Version: 1, Kind: Kind(7)})
			},
			wantErr: ErrInvalidKind,
			version: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := tt.build().Build()
			if set != nil {
				t.Fatal("expected no set on error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %T", err)
			}
			if !cfgErr.HasVersion || cfgErr.Version != tt.version {
				t.Errorf("got version %d, want %d", cfgErr.Version, tt.version)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	if Up.String() != "up" || Down.String() != "down" || Kind(9).String() != "unknown" {
		t.Fatal("kind names mismatch")
	}
}

func TestErrorMessages(t *testing.T) {
	err := versionError(ErrDuplicateVersion, 2, "wealthy_warbird")
	if err.Error() != "migration config: duplicate version (version 2): wealthy_warbird" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	err = configError(ErrNoMigrations, "")
	if err.Error() != "migration config: no migration set" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	err = versionError(ErrInvalidVersion, -3, "must not be negative")
	if err.Error() != "migration config: invalid version (version -3): must not be negative" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	err = versionError(ErrUnknownVersion, 0, "seed")
	if err.Error() != "migration config: applied version missing from migration set (version 0): seed" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	exec := &ExecutionError{Version: 2, Description: "wealthy_warbird", Err: errors.New("near \"CREAT\": syntax error")}
	if exec.Error() != `migration 2 (wealthy_warbird) failed: near "CREAT": syntax error` {
		t.Fatalf("unexpected message %q", exec.Error())
	}
}
