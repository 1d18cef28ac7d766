package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/helixml/artsearch/internal/database"
)

// metUpsertBatchSize keeps each INSERT under SQLite's bound-parameter limit.
const metUpsertBatchSize = 500

// MetObject is a cached object from the Met collection API.
type MetObject struct {
	ObjectID          int       `gorm:"column:object_id;primaryKey;autoIncrement:false" json:"objectID"`
	AccessionNumber   string    `gorm:"column:accession_number" json:"accessionNumber"`
	Title             string    `gorm:"column:title" json:"title"`
	ArtistDisplayName string    `gorm:"column:artist_display_name" json:"artistDisplayName"`
	ArtistAlphaSort   string    `gorm:"column:artist_alpha_sort" json:"artistAlphaSort"`
	ObjectDate        string    `gorm:"column:object_date" json:"objectDate"`
	Medium            string    `gorm:"column:medium" json:"medium"`
	Dimensions        string    `gorm:"column:dimensions" json:"dimensions"`
	Department        string    `gorm:"column:department" json:"department"`
	Classification    string    `gorm:"column:classification" json:"classification"`
	Culture           string    `gorm:"column:culture" json:"culture"`
	GalleryNumber     string    `gorm:"column:gallery_number" json:"GalleryNumber"`
	PrimaryImage      string    `gorm:"column:primary_image" json:"primaryImage"`
	PrimaryImageSmall string    `gorm:"column:primary_image_small" json:"primaryImageSmall"`
	ObjectURL         string    `gorm:"column:object_url" json:"objectURL"`
	FetchedAt         time.Time `gorm:"column:fetched_at" json:"-"`
}

// TableName returns the table name for GORM.
func (MetObject) TableName() string { return "met_objects" }

// MetObjectStore caches Met collection objects.
type MetObjectStore struct {
	db database.Database
}

// NewMetObjectStore creates a MetObjectStore.
func NewMetObjectStore(db database.Database) *MetObjectStore {
	return &MetObjectStore{db: db}
}

// Upsert saves objects, replacing any with the same object ID.
func (s *MetObjectStore) Upsert(ctx context.Context, objects []MetObject) error {
	if len(objects) == 0 {
		return nil
	}
	return database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "object_id"}},
			UpdateAll: true,
		}).CreateInBatches(&objects, metUpsertBatchSize).Error
	})
}

// IDs returns the set of cached object IDs.
func (s *MetObjectStore) IDs(ctx context.Context) (map[int]struct{}, error) {
	var ids []int
	if err := s.db.Session(ctx).Model(&MetObject{}).Pluck("object_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list cached met ids: %w", err)
	}
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// List returns cached objects that have an image, ordered by object ID.
// A limit <= 0 returns all of them.
func (s *MetObjectStore) List(ctx context.Context, limit int) ([]MetObject, error) {
	q := s.db.Session(ctx).
		Where("primary_image_small <> ''").
		Order("object_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var objects []MetObject
	if err := q.Find(&objects).Error; err != nil {
		return nil, fmt.Errorf("list cached met objects: %w", err)
	}
	return objects, nil
}

// Count returns the number of cached objects.
func (s *MetObjectStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.Session(ctx).Model(&MetObject{}).Count(&n).Error
	return n, err
}
