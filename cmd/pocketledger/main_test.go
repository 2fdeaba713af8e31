package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pocketledger/pocketledger/internal/lock"
	"github.com/pocketledger/pocketledger/internal/migrator"
)

func dsnFlag(t *testing.T) []string {
	t.Helper()
	return []string{"--dsn", "sqlite:" + filepath.Join(t.TempDir(), "main.db")}
}

func TestMigrateThenStatus(t *testing.T) {
	dsn := dsnFlag(t)
	var stdout, stderr bytes.Buffer

	if code := run(append([]string{"migrate"}, dsn...), &stdout, &stderr); code != exitOK {
		t.Fatalf("migrate exit %d: %s", code, stderr.String())
	}

	stdout.Reset()
	if code := run(append([]string{"status", "--json"}, dsn...), &stdout, &stderr); code != exitOK {
		t.Fatalf("status exit %d: %s", code, stderr.String())
	}
	var items []struct {
		Version int64  `json:"version"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &items); err != nil {
		t.Fatalf("decode status: %v (%s)", err, stdout.String())
	}
	if len(items) != 2 || items[0].Status != "applied" || items[1].Status != "applied" {
		t.Fatalf("unexpected status %+v", items)
	}
}

func TestStatusBeforeMigrateShowsPending(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(append([]string{"status"}, dsnFlag(t)...), &stdout, &stderr); code != exitOK {
		t.Fatalf("status exit %d: %s", code, stderr.String())
	}
	if strings.Count(stdout.String(), "pending") != 2 {
		t.Fatalf("expected two pending rows, got %q", stdout.String())
	}
}

func TestMigrateDryRunLeavesPending(t *testing.T) {
	dsn := dsnFlag(t)
	var stdout, stderr bytes.Buffer
	if code := run(append([]string{"migrate", "--dry-run"}, dsn...), &stdout, &stderr); code != exitOK {
		t.Fatalf("migrate exit %d: %s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "migrate planned") || !strings.Contains(stderr.String(), "pending=2") {
		t.Fatalf("expected planned log, got %q", stderr.String())
	}

	stdout.Reset()
	if code := run(append([]string{"status"}, dsn...), &stdout, &stderr); code != exitOK {
		t.Fatalf("status exit %d: %s", code, stderr.String())
	}
	if strings.Count(stdout.String(), "pending") != 2 {
		t.Fatalf("expected two pending rows after dry run, got %q", stdout.String())
	}
}

func TestInvokeSelect(t *testing.T) {
	dsn := dsnFlag(t)
	var stdout, stderr bytes.Buffer
	args := append([]string{"invoke", "execute", `{"sql":"INSERT INTO category (name, type) VALUES (?, ?)","params":["Rent","Expense"]}`}, dsn...)
	if code := run(args, &stdout, &stderr); code != exitOK {
		t.Fatalf("execute exit %d: %s", code, stderr.String())
	}

	stdout.Reset()
	args = append([]string{"invoke", "select", `{"sql":"SELECT id, name, type FROM category"}`}, dsn...)
	if code := run(args, &stdout, &stderr); code != exitOK {
		t.Fatalf("select exit %d: %s", code, stderr.String())
	}
	if strings.TrimSpace(stdout.String()) != `[[1,"Rent","Expense"]]` {
		t.Fatalf("unexpected output %q", stdout.String())
	}
}

func TestInvokeGreet(t *testing.T) {
	var stdout, stderr bytes.Buffer
	args := append([]string{"invoke", "greet", `{"name":"Ada"}`}, dsnFlag(t)...)
	if code := run(args, &stdout, &stderr); code != exitOK {
		t.Fatalf("invoke exit %d: %s", code, stderr.String())
	}
	if strings.TrimSpace(stdout.String()) != `"Hello, Ada! You've been greeted from Go!"` {
		t.Fatalf("unexpected output %q", stdout.String())
	}
}

func TestBrokenMigrationExitCode(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "1_broken.sql"), []byte("CREAT TABLE x(id INT);"), 0o644); err != nil {
		t.Fatal(err)
	}
	var stdout, stderr bytes.Buffer
	args := append([]string{"migrate", "--dir", dir}, dsnFlag(t)...)
	if code := run(args, &stdout, &stderr); code != exitFail {
		t.Fatalf("expected exit %d, got %d", exitFail, code)
	}
	if !strings.Contains(stderr.String(), "migration 1 (broken)") {
		t.Fatalf("expected failing version in output, got %q", stderr.String())
	}
}

func TestVersionCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"version"}, &stdout, &stderr); code != exitOK {
		t.Fatalf("version exit %d: %s", code, stderr.String())
	}
	if !strings.HasPrefix(stdout.String(), "pocketledger 0.1.0 (schema 2)") {
		t.Fatalf("unexpected version output %q", stdout.String())
	}
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{&migrator.ConfigError{Err: migrator.ErrDrift, Version: 1}, exitDrift},
		{fmt.Errorf("acquire: %w", lock.ErrTimeout), exitLocked},
		{&migrator.ConfigError{Err: migrator.ErrDuplicateVersion, Version: 1}, exitPlanError},
		{&migrator.ExecutionError{Version: 2, Err: errors.New("boom")}, exitFail},
		{errors.New("other"), exitFail},
	}
	for _, c := range cases {
		if got := exitCode(c.err); got != c.want {
			t.Errorf("exitCode(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}
