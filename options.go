package artsearch

import (
	"io"
	"log/slog"
	"path/filepath"

	"github.com/helixml/artsearch/domain/search"
	"github.com/helixml/artsearch/infrastructure/vision"
	"github.com/helixml/artsearch/internal/config"
)

// Embedder embeds both images and text into one vector space.
type Embedder interface {
	search.ImageEmbedder
	search.TextEmbedder
}

// clientConfig holds configuration for Client construction.
// Use newClientConfig() to create with defaults from internal/config.
type clientConfig struct {
	dbURL        string
	dataDir      string
	vision       config.VisionEndpoint
	visionOpts   []vision.Option
	embedder     Embedder
	text         *config.Endpoint
	descriptions search.TextEmbedder
	index        config.IndexConfig
	ingest       config.IngestConfig
	topK         int
	httpCacheDir string
	logger       *slog.Logger
	closers      []io.Closer
}

func newClientConfig() *clientConfig {
	return &clientConfig{
		dataDir: config.DefaultDataDir(),
		vision:  config.NewVisionEndpoint(),
		index:   config.NewIndexConfig(),
		ingest:  config.NewIngestConfig(),
		topK:    config.DefaultSearchTopK,
	}
}

// databaseURL returns the configured URL, or a SQLite file in the data
// directory.
func (c *clientConfig) databaseURL() string {
	if c.dbURL != "" {
		return c.dbURL
	}
	return "sqlite:///" + filepath.Join(c.dataDir, "artsearch.db")
}

// Option configures the Client.
type Option func(*clientConfig)

// WithDatabaseURL sets the index database (sqlite:///path or postgres://...).
func WithDatabaseURL(url string) Option {
	return func(c *clientConfig) {
		c.dbURL = url
	}
}

// WithSQLite stores the indexes in a SQLite file.
func WithSQLite(path string) Option {
	return func(c *clientConfig) {
		c.dbURL = "sqlite:///" + path
	}
}

// WithPostgres stores the indexes in PostgreSQL with pgvector.
func WithPostgres(dsn string) Option {
	return func(c *clientConfig) {
		c.dbURL = dsn
	}
}

// WithDataDir sets the directory holding the default SQLite database.
func WithDataDir(dir string) Option {
	return func(c *clientConfig) {
		if dir != "" {
			c.dataDir = dir
		}
	}
}

// WithVisionEndpoint configures the multimodal embedding service.
func WithVisionEndpoint(v config.VisionEndpoint) Option {
	return func(c *clientConfig) {
		c.vision = v
	}
}

// WithVisionOptions passes extra options to the embedding service client.
func WithVisionOptions(opts ...vision.Option) Option {
	return func(c *clientConfig) {
		c.visionOpts = append(c.visionOpts, opts...)
	}
}

// WithEmbedder replaces the embedding service client.
func WithEmbedder(e Embedder) Option {
	return func(c *clientConfig) {
		c.embedder = e
	}
}

// WithTextEndpoint enables description search through an OpenAI-compatible
// embeddings endpoint.
func WithTextEndpoint(e config.Endpoint) Option {
	return func(c *clientConfig) {
		c.text = &e
	}
}

// WithDescriptionEmbedder enables description search with a custom embedder.
func WithDescriptionEmbedder(e search.TextEmbedder) Option {
	return func(c *clientConfig) {
		c.descriptions = e
	}
}

// WithIndexConfig sets index names and dimensions.
func WithIndexConfig(i config.IndexConfig) Option {
	return func(c *clientConfig) {
		c.index = i
	}
}

// WithIngestConfig sets the default record limit, chunk size and concurrency.
func WithIngestConfig(i config.IngestConfig) Option {
	return func(c *clientConfig) {
		c.ingest = i
	}
}

// WithSearchTopK sets the default number of search results.
func WithSearchTopK(k int) Option {
	return func(c *clientConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithHTTPCacheDir caches successful embedding responses on disk.
func WithHTTPCacheDir(dir string) Option {
	return func(c *clientConfig) {
		c.httpCacheDir = dir
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithCloser registers a resource to be closed when the Client shuts down.
func WithCloser(cl io.Closer) Option {
	return func(c *clientConfig) {
		c.closers = append(c.closers, cl)
	}
}

// OptionsFromConfig translates application configuration into options.
func OptionsFromConfig(cfg config.AppConfig) []Option {
	opts := []Option{
		WithDataDir(cfg.DataDir()),
		WithDatabaseURL(cfg.DBURL()),
		WithVisionEndpoint(cfg.Vision()),
		WithIndexConfig(cfg.Index()),
		WithIngestConfig(cfg.Ingest()),
		WithSearchTopK(cfg.SearchTopK()),
		WithHTTPCacheDir(cfg.HTTPCacheDir()),
	}
	if text := cfg.TextEndpoint(); text != nil && text.IsConfigured() {
		opts = append(opts, WithTextEndpoint(*text))
	}
	return opts
}
