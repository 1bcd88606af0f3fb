package testutil

import (
	"testing"

	"github.com/BhargaviGangoor/Wassup-Guard/internal/database"
	"github.com/BhargaviGangoor/Wassup-Guard/internal/guard"
)

// NewTestDatabase creates an in-memory SQLite database with all migrations
// applied. The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T) guard.Database {
	t.Helper()

	db, err := database.NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
