package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/helixml/artsearch/domain/artwork"
	"github.com/helixml/artsearch/domain/search"
	"github.com/helixml/artsearch/internal/database"
)

const sqliteCreateTableTemplate = `
CREATE TABLE IF NOT EXISTS %s (
    object_id TEXT PRIMARY KEY,
    accession_num TEXT NOT NULL DEFAULT '',
    title TEXT NOT NULL DEFAULT '',
    display_date TEXT NOT NULL DEFAULT '',
    medium TEXT NOT NULL DEFAULT '',
    dimensions TEXT NOT NULL DEFAULT '',
    attribution TEXT NOT NULL DEFAULT '',
    location_description TEXT NOT NULL DEFAULT '',
    image_url TEXT NOT NULL DEFAULT '',
    metadata JSON NOT NULL DEFAULT '{}',
    vector JSON NOT NULL,
    updated_at DATETIME
)`

// SQLiteIndex stores vectors as JSON and ranks them in memory by cosine
// similarity.
type SQLiteIndex struct {
	db     database.Database
	schema search.Schema
	table  string
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteIndex opens the index for schema.
func NewSQLiteIndex(db database.Database, schema search.Schema, logger *slog.Logger) *SQLiteIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteIndex{
		db:     db,
		schema: schema,
		table:  TableName(schema),
		logger: logger,
		now:    time.Now,
	}
}

// Schema returns the index schema.
func (s *SQLiteIndex) Schema() search.Schema { return s.schema }

// Reset drops and recreates the index table.
func (s *SQLiteIndex) Reset(ctx context.Context) error {
	db := s.db.Session(ctx)
	if err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", s.table)).Error; err != nil {
		return fmt.Errorf("drop index %s: %w", s.schema.Name(), err)
	}
	if err := db.Exec(fmt.Sprintf(sqliteCreateTableTemplate, s.table)).Error; err != nil {
		return fmt.Errorf("create index %s: %w", s.schema.Name(), err)
	}
	s.logger.InfoContext(ctx, "index reset", "index", s.schema.Name(), "dimension", s.schema.Dimension())
	return nil
}

// Ensure creates the index table when it is missing.
func (s *SQLiteIndex) Ensure(ctx context.Context) error {
	if err := s.db.Session(ctx).Exec(fmt.Sprintf(sqliteCreateTableTemplate, s.table)).Error; err != nil {
		return fmt.Errorf("create index %s: %w", s.schema.Name(), err)
	}
	return nil
}

// BulkUpsert writes docs in one transaction, replacing rows with the same
// object ID.
func (s *SQLiteIndex) BulkUpsert(ctx context.Context, docs []artwork.Document) error {
	if err := search.CheckBulk(docs, s.schema.Dimension()); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	now := s.now().UTC()
	rows := make([]sqliteDocument, len(docs))
	for i, d := range docs {
		rows[i] = sqliteDocument{
			documentColumns: newDocumentColumns(d, now),
			Vector:          Float32Slice(d.Vector),
		}
	}

	return database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		return tx.Table(s.table).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "object_id"}},
			UpdateAll: true,
		}).Create(&rows).Error
	})
}

// Search returns the k documents most similar to vector.
func (s *SQLiteIndex) Search(ctx context.Context, vector []float32, k int) ([]search.Hit, error) {
	if len(vector) != s.schema.Dimension() {
		return nil, fmt.Errorf("%w: query has %d, index expects %d", search.ErrDimensionMismatch, len(vector), s.schema.Dimension())
	}
	if k <= 0 {
		return []search.Hit{}, nil
	}

	var rows []sqliteDocument
	if err := s.db.Session(ctx).Table(s.table).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load index %s: %w", s.schema.Name(), err)
	}

	candidates := make([][]float32, len(rows))
	for i, r := range rows {
		candidates[i] = r.Vector
	}

	ranked := topK(vector, candidates, k)
	hits := make([]search.Hit, len(ranked))
	for i, r := range ranked {
		row := rows[r.pos]
		hits[i] = search.NewHit(row.document([]float32(row.Vector)), r.score)
	}
	return hits, nil
}

// Count returns the number of documents in the index.
func (s *SQLiteIndex) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.Session(ctx).Table(s.table).Count(&n).Error
	return n, err
}

var _ search.Index = (*SQLiteIndex)(nil)
