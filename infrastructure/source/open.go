package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/helixml/artsearch/domain/artwork"
	"github.com/helixml/artsearch/infrastructure/persistence"
	"github.com/helixml/artsearch/internal/config"
	"github.com/helixml/artsearch/internal/database"
)

// ErrMissingCSVPath indicates the CSV source was selected without a path.
var ErrMissingCSVPath = errors.New("csv source requires a path")

// Opened is a source together with the resources it holds.
type Opened struct {
	artwork.Source
	close func()
}

// Close releases the source's resources.
func (o Opened) Close() {
	if o.close != nil {
		o.close()
	}
}

// Open builds the source selected by cfg. db backs the Met cache.
func Open(ctx context.Context, cfg config.SourceConfig, db database.Database, logger *slog.Logger) (Opened, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Type() {
	case config.SourceCSV:
		if cfg.CSVPath() == "" {
			return Opened{}, ErrMissingCSVPath
		}
		return Opened{Source: NewCSV(cfg.CSVPath())}, nil

	case config.SourceBlob:
		blob := cfg.Blob()
		store, err := NewMinioStore(blob)
		if err != nil {
			return Opened{}, err
		}
		return Opened{Source: NewBlob(store, blob.Bucket, blob.ProcessedBucket, logger)}, nil

	case config.SourceNGA:
		pool, err := ConnectNGA(ctx, cfg.NGADBURL())
		if err != nil {
			return Opened{}, err
		}
		return Opened{Source: NewNGA(pool), close: pool.Close}, nil

	case config.SourceMet:
		return Opened{Source: NewMet(persistence.NewMetObjectStore(db))}, nil
	}
	return Opened{}, fmt.Errorf("unknown source type %q", cfg.Type())
}
