// Package sqlite_test contains integration tests for the SQLite stores.
// Test databases are :memory: instances built from the authoritative
// SchemaSQL so test and production schemas cannot drift.
package sqlite_test

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/haulcommand/signal-engine/internal/store/sqlite"
)

// setupTestDB creates an in-memory database with the authoritative schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if _, err := db.Exec(sqlite.SchemaSQL); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedEntity inserts a test entity and returns its ID.
func seedEntity(t *testing.T, db *sql.DB, id, kind string) string {
	t.Helper()
	if id == "" {
		id = "load-001"
	}
	if kind == "" {
		kind = "load"
	}
	if _, err := db.Exec("INSERT INTO entities (id, kind) VALUES (?, ?)", id, kind); err != nil {
		t.Fatalf("failed to seed entity: %v", err)
	}
	return id
}
