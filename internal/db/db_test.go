package db_test

import (
	"testing"

	"github.com/vrsandeep/tubeindex/internal/testutil"
)

func TestMigrations(t *testing.T) {
	// Setup test database with migrations already applied
	db := testutil.SetupTestDB(t)

	// Verify foreign keys are enabled
	var foreignKeysEnabled int
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeysEnabled)
	if err != nil {
		t.Fatalf("Failed to check foreign keys status: %v", err)
	}
	if foreignKeysEnabled != 1 {
		t.Errorf("Foreign keys should be enabled, got: %d", foreignKeysEnabled)
	}

	// Both tables from the initial migration must exist and be writable.
	_, err = db.Exec(`INSERT INTO submissions (video_id, url) VALUES (?, ?)`,
		"dQw4w9WgXcQ", "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Failed to insert into submissions: %v", err)
	}

	_, err = db.Exec(`INSERT INTO credentials (id, access_token, expires_at_ms) VALUES (1, ?, ?)`,
		"tok", 1234567890)
	if err != nil {
		t.Fatalf("Failed to insert into credentials: %v", err)
	}

	// The credentials table is pinned to a single row.
	_, err = db.Exec(`INSERT INTO credentials (id, access_token, expires_at_ms) VALUES (2, ?, ?)`,
		"tok2", 1234567890)
	if err == nil {
		t.Error("Expected CHECK constraint to reject a second credentials row")
	}
}
