package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/playperu/racetrack/internal/database"
)

func TestOpenCreatesDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "racetrack.db")

	db, err := database.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(context.Background(), "CREATE TABLE t (id INTEGER)"); err != nil {
		t.Fatalf("creating table: %v", err)
	}
}
