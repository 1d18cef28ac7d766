// Package testdb opens in-memory SQLite databases for tests.
package testdb

import (
	"context"
	"testing"

	"github.com/helixml/artsearch/infrastructure/persistence"
	"github.com/helixml/artsearch/internal/database"
)

// New returns a migrated in-memory SQLite database that is closed when the
// test finishes.
func New(t *testing.T) database.Database {
	t.Helper()
	db, err := database.NewDatabase(context.Background(), "sqlite:///:memory:")
	if err != nil {
		t.Fatalf("testdb: open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := persistence.AutoMigrate(db); err != nil {
		t.Fatalf("testdb: migrate: %v", err)
	}
	return db
}

// MetStore returns a Met object cache on a fresh database, seeded with
// objects.
func MetStore(t *testing.T, objects ...persistence.MetObject) *persistence.MetObjectStore {
	t.Helper()
	store := persistence.NewMetObjectStore(New(t))
	if len(objects) == 0 {
		return store
	}
	if err := store.Upsert(context.Background(), objects); err != nil {
		t.Fatalf("testdb: seed met objects: %v", err)
	}
	return store
}
