package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"eqms/internal/bootstrap/config"
)

func TestSQLiteDSNAddsBusyTimeout(t *testing.T) {
	tests := map[string]string{
		"state/eqms.sqlite":                    "state/eqms.sqlite?_pragma=busy_timeout(5000)",
		"file:eqms.sqlite?cache=shared":        "file:eqms.sqlite?cache=shared&_pragma=busy_timeout(5000)",
		"eqms.sqlite?_pragma=busy_timeout(10)": "eqms.sqlite?_pragma=busy_timeout(10)",
	}
	for in, want := range tests {
		if got := sqliteDSN(in); got != want {
			t.Fatalf("sqliteDSN(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOpenSQLiteCreatesDirectory(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "state", "eqms.sqlite")

	db, err := Open(context.Background(), config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("DB() error = %v", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(dsn)); err != nil {
		t.Fatalf("sqlite directory missing: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle", DSN: "x"}); err == nil {
		t.Fatalf("Open() accepted unknown driver")
	}
}
