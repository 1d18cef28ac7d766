// Package persistence provides database storage implementations.
package persistence

import (
	"fmt"
	"log/slog"

	"github.com/helixml/artsearch/domain/search"
	"github.com/helixml/artsearch/internal/database"
)

// AutoMigrate creates the tables managed by GORM models. Index tables are
// created by the index itself because their vector column depends on the
// schema dimension.
func AutoMigrate(db database.Database) error {
	if err := db.GORM().AutoMigrate(&MetObject{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// NewIndex opens the index for schema on whichever engine db uses.
func NewIndex(db database.Database, schema search.Schema, logger *slog.Logger) search.Index {
	if db.IsPostgres() {
		return NewPgvectorIndex(db, schema, logger)
	}
	return NewSQLiteIndex(db, schema, logger)
}
