package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/helixml/artsearch/internal/database"
)

// newTestDB opens a migrated in-memory SQLite database. The testdb package
// imports persistence, so it cannot be used from here.
func newTestDB(t *testing.T) database.Database {
	t.Helper()
	db, err := database.NewDatabase(context.Background(), "sqlite:///:memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, AutoMigrate(db))
	return db
}
