// Package artsearch provides a library for image similarity search over
// museum collections.
//
// Artsearch reads artwork records from a collection source, embeds each
// artwork's image with a multimodal embedding service, stores the vectors in
// a SQLite or pgvector index and answers image, text and description queries.
//
// Basic usage:
//
//	client, err := artsearch.New(
//	    artsearch.WithSQLite(".artsearch/artsearch.db"),
//	    artsearch.WithVisionEndpoint(config.NewVisionEndpointWithOptions(
//	        config.WithVisionBaseURL(os.Getenv("VISION_ENDPOINT_BASE_URL")),
//	        config.WithVisionAPIKey(os.Getenv("VISION_ENDPOINT_API_KEY")),
//	    )),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Index a CSV export
//	report, err := client.Ingest(ctx, source.NewCSV("artworks.csv"))
//
//	// Find similar artworks
//	matches, err := client.Search.ByImage(ctx, search.ImageFromURL(url), 5)
package artsearch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync/atomic"

	"github.com/helixml/artsearch/domain/artwork"
	"github.com/helixml/artsearch/domain/search"
	"github.com/helixml/artsearch/domain/service"
	"github.com/helixml/artsearch/infrastructure/httpcache"
	"github.com/helixml/artsearch/infrastructure/persistence"
	"github.com/helixml/artsearch/infrastructure/provider"
	"github.com/helixml/artsearch/infrastructure/vision"
	"github.com/helixml/artsearch/internal/database"
)

// ErrClientClosed indicates the client has been closed.
var ErrClientClosed = errors.New("artsearch: client is closed")

// Target selects which index an ingestion run fills.
type Target string

// Target values.
const (
	TargetImage       Target = "image"
	TargetDescription Target = "description"
)

// ParseTarget parses an ingestion target.
func ParseTarget(s string) (Target, error) {
	switch Target(strings.ToLower(strings.TrimSpace(s))) {
	case TargetImage, "":
		return TargetImage, nil
	case TargetDescription:
		return TargetDescription, nil
	}
	return "", fmt.Errorf("unknown ingest target %q", s)
}

// Client is the main entry point for the artsearch library.
//
// Queries go through the Search field:
//
//	client.Search.ByText(ctx, "a ship in a storm", 5)
type Client struct {
	Search *service.Search

	db           database.Database
	embedder     Embedder
	descriptions search.TextEmbedder
	images       search.Index
	descIndex    search.Index
	defaults     ingestParams
	closers      []io.Closer
	logger       *slog.Logger
	closed       atomic.Bool
}

// New creates a Client: it opens the database, migrates it, builds the
// embedding clients and makes sure the indexes exist.
func New(opts ...Option) (*Client, error) {
	cfg := newClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	imageSchema, err := search.NewSchema(cfg.index.Name(), cfg.index.Dimension())
	if err != nil {
		return nil, fmt.Errorf("image index: %w", err)
	}
	textSchema, err := search.NewSchema(cfg.index.TextName(), cfg.index.TextDimension())
	if err != nil {
		return nil, fmt.Errorf("description index: %w", err)
	}

	httpClient, err := embeddingHTTPClient(cfg.httpCacheDir)
	if err != nil {
		return nil, err
	}

	embedder := cfg.embedder
	if embedder == nil {
		visionOpts := []vision.Option{vision.WithLogger(logger)}
		if httpClient != nil {
			visionOpts = append(visionOpts, vision.WithHTTPClient(httpClient))
		}
		client, err := vision.NewClientFromConfig(cfg.vision, append(visionOpts, cfg.visionOpts...)...)
		if err != nil {
			return nil, fmt.Errorf("embedding client: %w", err)
		}
		embedder = client
	}

	descriptions := cfg.descriptions
	if descriptions == nil && cfg.text != nil {
		var hc *http.Client
		if httpClient != nil {
			hc = &http.Client{Transport: httpClient.Transport, Timeout: cfg.text.Timeout()}
		}
		p, err := provider.NewOpenAIEmbedder(*cfg.text, hc)
		if err != nil {
			return nil, fmt.Errorf("description embedder: %w", err)
		}
		descriptions = p
	}

	if strings.HasPrefix(cfg.databaseURL(), "sqlite:///") {
		if err := os.MkdirAll(cfg.dataDir, 0o750); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	ctx := context.Background()
	db, err := database.NewDatabaseWithLogger(ctx, cfg.databaseURL(), logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := persistence.AutoMigrate(db); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("auto migrate: %w", err), errClose)
	}

	images := persistence.NewIndex(db, imageSchema, logger)
	if err := images.Ensure(ctx); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("ensure image index: %w", err), errClose)
	}

	searchOpts := []service.SearchOption{service.WithTopK(cfg.topK)}
	var descIndex search.Index
	if descriptions != nil {
		descIndex = persistence.NewIndex(db, textSchema, logger)
		if err := descIndex.Ensure(ctx); err != nil {
			errClose := db.Close()
			return nil, errors.Join(fmt.Errorf("ensure description index: %w", err), errClose)
		}
		searchOpts = append(searchOpts, service.WithDescriptionIndex(descriptions, descIndex))
	}

	searchSvc, err := service.NewSearch(embedder, embedder, images, searchOpts...)
	if err != nil {
		errClose := db.Close()
		return nil, errors.Join(err, errClose)
	}

	return &Client{
		Search:       searchSvc,
		db:           db,
		embedder:     embedder,
		descriptions: descriptions,
		images:       images,
		descIndex:    descIndex,
		defaults: ingestParams{
			target:      TargetImage,
			limit:       cfg.ingest.RecordLimit(),
			reset:       cfg.index.Reset(),
			chunkSize:   cfg.ingest.ChunkSize(),
			concurrency: cfg.ingest.Concurrency(),
		},
		closers: cfg.closers,
		logger:  logger,
	}, nil
}

// embeddingHTTPClient returns a client that caches successful responses in
// dir, or nil when dir is empty.
func embeddingHTTPClient(dir string) (*http.Client, error) {
	if dir == "" {
		return nil, nil
	}
	cache, err := httpcache.New(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("http cache: %w", err)
	}
	return cache.Client(), nil
}

// Ingest reads records from src, embeds them and writes them to the index
// selected by the target option. The index is reset first unless
// WithReset(false) is given or configured.
func (c *Client) Ingest(ctx context.Context, src artwork.Source, opts ...IngestOption) (service.Report, error) {
	if c.closed.Load() {
		return service.Report{}, ErrClientClosed
	}

	p := c.defaults
	for _, opt := range opts {
		opt(&p)
	}

	index, embedder, err := c.target(p.target)
	if err != nil {
		return service.Report{}, err
	}

	name := index.Schema().Name()
	if p.reset {
		if err := index.Reset(ctx); err != nil {
			return service.Report{}, fmt.Errorf("reset index %s: %w", name, err)
		}
	} else if err := index.Ensure(ctx); err != nil {
		return service.Report{}, fmt.Errorf("ensure index %s: %w", name, err)
	}

	ingestion, err := service.NewIngestion(embedder, index,
		service.WithConcurrency(p.concurrency),
		service.WithChunkSize(p.chunkSize),
		service.WithLogger(c.logger),
		service.WithDimension(index.Schema().Dimension()),
	)
	if err != nil {
		return service.Report{}, err
	}

	c.logger.InfoContext(ctx, "starting ingestion",
		"target", string(p.target),
		"index", name,
		"reset", p.reset,
		"limit", p.limit,
		"chunk_size", ingestion.ChunkSize(),
		"concurrency", ingestion.Concurrency(),
	)
	return ingestion.FromSource(ctx, src, p.limit, p.runOptions...)
}

func (c *Client) target(t Target) (search.Index, service.RecordEmbedder, error) {
	switch t {
	case TargetImage, "":
		return c.images, service.NewImageRecords(c.embedder), nil
	case TargetDescription:
		if c.descIndex == nil {
			return nil, nil, service.ErrDescriptionSearchDisabled
		}
		return c.descIndex, service.NewDescriptionRecords(c.descriptions), nil
	}
	return nil, nil, fmt.Errorf("unknown ingest target %q", t)
}

// ImageIndex returns the image index.
func (c *Client) ImageIndex() search.Index { return c.images }

// DescriptionIndex returns the description index, nil when description
// search is not configured.
func (c *Client) DescriptionIndex() search.Index { return c.descIndex }

// Database returns the index database.
func (c *Client) Database() database.Database { return c.db }

// Ping checks the database connection.
func (c *Client) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return c.db.Ping(ctx)
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// Close releases the database and any registered resources. It is safe to
// call more than once.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			c.logger.Error("failed to close resource", slog.Any("error", err))
		}
	}

	if err := c.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	c.logger.Info("artsearch client closed")
	return nil
}

// ingestParams holds the resolved settings of one ingestion run.
type ingestParams struct {
	target      Target
	limit       int
	reset       bool
	chunkSize   int
	concurrency int
	runOptions  []search.IngestOption
}

// IngestOption configures one ingestion run.
type IngestOption func(*ingestParams)

// WithTarget selects the image or the description index.
func WithTarget(t Target) IngestOption {
	return func(p *ingestParams) { p.target = t }
}

// WithRecordLimit caps the number of records read. Values <= 0 read all.
func WithRecordLimit(n int) IngestOption {
	return func(p *ingestParams) { p.limit = n }
}

// WithReset chooses between dropping and recreating the index (true) and
// keeping existing documents (false).
func WithReset(reset bool) IngestOption {
	return func(p *ingestParams) { p.reset = reset }
}

// WithChunkSize sets the number of documents per bulk write.
func WithChunkSize(n int) IngestOption {
	return func(p *ingestParams) {
		if n > 0 {
			p.chunkSize = n
		}
	}
}

// WithConcurrency sets the number of records embedded at once.
func WithConcurrency(n int) IngestOption {
	return func(p *ingestParams) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithRunOptions passes callbacks to the ingestion pipeline.
func WithRunOptions(opts ...search.IngestOption) IngestOption {
	return func(p *ingestParams) {
		p.runOptions = append(p.runOptions, opts...)
	}
}
