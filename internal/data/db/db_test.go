package db

import (
	"path/filepath"
	"testing"
)

func TestOpenSQLiteMigratesArchive(t *testing.T) {
	gdb, err := Open(nil, "sqlite", filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !gdb.Migrator().HasTable("assistant_message") {
		t.Fatalf("assistant_message table missing")
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(nil, "mysql", "x"); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}
