package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/helixml/artsearch/domain/artwork"
	"github.com/helixml/artsearch/domain/search"
	"github.com/helixml/artsearch/internal/database"
)

const (
	pgvCreateExtension = `CREATE EXTENSION IF NOT EXISTS vector`

	pgvCreateTableTemplate = `
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
    metadata JSONB NOT NULL DEFAULT '{}',
    vector VECTOR(%d) NOT NULL,
    updated_at TIMESTAMPTZ
)`

	pgvCreateIndexTemplate = `
CREATE INDEX IF NOT EXISTS %s_vector_idx
ON %s
USING hnsw (vector vector_cosine_ops)`

	pgvCheckDimension = `
SELECT a.atttypmod AS dimension
FROM pg_attribute a
JOIN pg_class c ON a.attrelid = c.oid
WHERE c.relname = ?
AND a.attname = 'vector'`

	pgvSearchTemplate = `
SELECT *, vector <=> ? AS distance
FROM %s
ORDER BY distance ASC
LIMIT ?`
)

// PgvectorIndex stores vectors in a pgvector column with an HNSW index and
// ranks them with the cosine distance operator.
type PgvectorIndex struct {
	db     database.Database
	schema search.Schema
	table  string
	logger *slog.Logger
	now    func() time.Time
}

// NewPgvectorIndex opens the index for schema.
func NewPgvectorIndex(db database.Database, schema search.Schema, logger *slog.Logger) *PgvectorIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &PgvectorIndex{
		db:     db,
		schema: schema,
		table:  TableName(schema),
		logger: logger,
		now:    time.Now,
	}
}

// Schema returns the index schema.
func (s *PgvectorIndex) Schema() search.Schema { return s.schema }

// Reset drops and recreates the index table.
func (s *PgvectorIndex) Reset(ctx context.Context) error {
	db := s.db.Session(ctx)
	if err := db.Exec(pgvCreateExtension).Error; err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	if err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", s.table)).Error; err != nil {
		return fmt.Errorf("drop index %s: %w", s.schema.Name(), err)
	}
	if err := s.create(ctx); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "index reset", "index", s.schema.Name(), "dimension", s.schema.Dimension())
	return nil
}

// Ensure creates the index table when it is missing and checks that an
// existing table has the schema dimension.
func (s *PgvectorIndex) Ensure(ctx context.Context) error {
	if err := s.db.Session(ctx).Exec(pgvCreateExtension).Error; err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	if err := s.create(ctx); err != nil {
		return err
	}

	var dimension int
	result := s.db.Session(ctx).Raw(pgvCheckDimension, s.table).Scan(&dimension)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return fmt.Errorf("check index dimension: %w", result.Error)
	}
	if result.RowsAffected > 0 && dimension != s.schema.Dimension() {
		return fmt.Errorf("%w: table %s has %d, schema has %d", search.ErrDimensionMismatch, s.table, dimension, s.schema.Dimension())
	}
	return nil
}

func (s *PgvectorIndex) create(ctx context.Context) error {
	db := s.db.Session(ctx)
	if err := db.Exec(fmt.Sprintf(pgvCreateTableTemplate, s.table, s.schema.Dimension())).Error; err != nil {
		return fmt.Errorf("create index %s: %w", s.schema.Name(), err)
	}
	if err := db.Exec(fmt.Sprintf(pgvCreateIndexTemplate, s.table, s.table)).Error; err != nil {
		s.logger.WarnContext(ctx, "failed to create hnsw index", "index", s.schema.Name(), "error", err)
	}
	return nil
}

// BulkUpsert writes docs in one transaction, replacing rows with the same
// object ID.
func (s *PgvectorIndex) BulkUpsert(ctx context.Context, docs []artwork.Document) error {
	if err := search.CheckBulk(docs, s.schema.Dimension()); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	now := s.now().UTC()
	rows := make([]pgDocument, len(docs))
	for i, d := range docs {
		rows[i] = pgDocument{
			documentColumns: newDocumentColumns(d, now),
			Vector:          database.NewPgVector(d.Vector),
		}
	}

	return database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		return tx.Table(s.table).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "object_id"}},
			UpdateAll: true,
		}).Create(&rows).Error
	})
}

// Search returns the k documents nearest to vector. The score is cosine
// similarity, one minus the cosine distance.
func (s *PgvectorIndex) Search(ctx context.Context, vector []float32, k int) ([]search.Hit, error) {
	if len(vector) != s.schema.Dimension() {
		return nil, fmt.Errorf("%w: query has %d, index expects %d", search.ErrDimensionMismatch, len(vector), s.schema.Dimension())
	}
	if k <= 0 {
		return []search.Hit{}, nil
	}

	var rows []pgHit
	query := fmt.Sprintf(pgvSearchTemplate, s.table)
	if err := s.db.Session(ctx).Raw(query, database.NewPgVector(vector).String(), k).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("search index %s: %w", s.schema.Name(), err)
	}

	hits := make([]search.Hit, len(rows))
	for i, r := range rows {
		hits[i] = search.NewHit(r.document(r.Vector.Slice()), 1-r.Distance)
	}
	return hits, nil
}

var _ search.Index = (*PgvectorIndex)(nil)
