// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultHost              = "0.0.0.0"
	DefaultPort              = 8080
	DefaultLogLevel          = "INFO"
	DefaultCORSOrigins       = "*"
	DefaultVisionAPIVersion  = "2023-04-15"
	DefaultVisionModel       = "2024-02-01"
	DefaultVisionTimeout     = 10 * time.Second
	DefaultVisionMaxRetries  = 3
	DefaultAuthorityHost     = "https://login.microsoftonline.com"
	DefaultTokenScope        = "https://cognitiveservices.azure.com/.default"
	DefaultTextModel         = "text-embedding-3-small"
	DefaultEndpointTimeout   = 60 * time.Second
	DefaultEndpointRetries   = 5
	DefaultInitialDelay      = 2 * time.Second
	DefaultBackoffFactor     = 2.0
	DefaultIndexName         = "gallerydata-v"
	DefaultIndexDimension    = 1024
	DefaultTextDimension     = 1536
	DefaultRecordLimit       = -1
	DefaultChunkSize         = 1000
	DefaultSearchTopK        = 3
	DefaultSourceType        = SourceCSV
	DefaultBlobBucket        = "images"
	DefaultProcessedBucket   = "processed"
	DefaultMetBaseURL        = "https://collectionapi.metmuseum.org/public/collection/v1"
	DefaultMetRateLimit      = 80.0
	DefaultMetWorkers        = 8
	MaxChunkSize             = 1000
	textIndexSuffix          = "-text"
	defaultDatabaseFileName  = "artsearch.db"
	defaultDataDirectoryName = ".artsearch"
)

// Validation errors.
var (
	ErrMissingVisionEndpoint   = errors.New("vision endpoint base URL is required")
	ErrMissingVisionCredential = errors.New("vision endpoint requires an API key or tenant, client id and client secret")
	ErrInvalidIndexDimension   = errors.New("index dimension must be positive")
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// SourceType names where ingestion records come from.
type SourceType string

// SourceType values.
const (
	SourceCSV  SourceType = "csv"
	SourceBlob SourceType = "blob"
	SourceNGA  SourceType = "nga"
	SourceMet  SourceType = "met"
)

// ParseSourceType parses a source type, returning an error for unknown values.
func ParseSourceType(s string) (SourceType, error) {
	switch SourceType(strings.ToLower(strings.TrimSpace(s))) {
	case SourceCSV:
		return SourceCSV, nil
	case SourceBlob:
		return SourceBlob, nil
	case SourceNGA:
		return SourceNGA, nil
	case SourceMet:
		return SourceMet, nil
	}
	return "", fmt.Errorf("unknown source type %q", s)
}

// VisionEndpoint configures the multimodal embedding service.
type VisionEndpoint struct {
	baseURL       string
	apiKey        string
	apiVersion    string
	modelVersion  string
	timeout       time.Duration
	maxRetries    int
	rateLimit     float64
	tenantID      string
	clientID      string
	clientSecret  string
	authorityHost string
}

// NewVisionEndpoint creates a VisionEndpoint with defaults.
func NewVisionEndpoint() VisionEndpoint {
	return VisionEndpoint{
		apiVersion:    DefaultVisionAPIVersion,
		modelVersion:  DefaultVisionModel,
		timeout:       DefaultVisionTimeout,
		maxRetries:    DefaultVisionMaxRetries,
		authorityHost: DefaultAuthorityHost,
	}
}

// BaseURL returns the endpoint base URL.
func (v VisionEndpoint) BaseURL() string { return v.baseURL }

// APIKey returns the subscription key.
func (v VisionEndpoint) APIKey() string { return v.apiKey }

// APIVersion returns the api-version query value.
func (v VisionEndpoint) APIVersion() string { return v.apiVersion }

// ModelVersion returns the model-version query value.
func (v VisionEndpoint) ModelVersion() string { return v.modelVersion }

// Timeout returns the per-request timeout.
func (v VisionEndpoint) Timeout() time.Duration { return v.timeout }

// MaxRetries returns how many times a throttled request is retried.
func (v VisionEndpoint) MaxRetries() int { return v.maxRetries }

// RateLimit returns the client-side request rate per second. Zero disables it.
func (v VisionEndpoint) RateLimit() float64 { return v.rateLimit }

// TenantID returns the directory tenant used for bearer tokens.
func (v VisionEndpoint) TenantID() string { return v.tenantID }

// ClientID returns the application id used for bearer tokens.
func (v VisionEndpoint) ClientID() string { return v.clientID }

// ClientSecret returns the application secret used for bearer tokens.
func (v VisionEndpoint) ClientSecret() string { return v.clientSecret }

// AuthorityHost returns the token authority base URL.
func (v VisionEndpoint) AuthorityHost() string { return v.authorityHost }

// UsesToken reports whether bearer-token authentication is configured.
func (v VisionEndpoint) UsesToken() bool {
	return v.tenantID != "" && v.clientID != "" && v.clientSecret != ""
}

// Validate checks the endpoint has an address and a credential.
func (v VisionEndpoint) Validate() error {
	if v.baseURL == "" {
		return ErrMissingVisionEndpoint
	}
	if v.apiKey == "" && !v.UsesToken() {
		return ErrMissingVisionCredential
	}
	return nil
}

// VisionOption is a functional option for VisionEndpoint.
type VisionOption func(*VisionEndpoint)

// WithVisionBaseURL sets the base URL.
func WithVisionBaseURL(url string) VisionOption {
	return func(v *VisionEndpoint) { v.baseURL = url }
}

// WithVisionAPIKey sets the subscription key.
func WithVisionAPIKey(key string) VisionOption {
	return func(v *VisionEndpoint) { v.apiKey = key }
}

// WithVisionAPIVersion sets the api-version.
func WithVisionAPIVersion(version string) VisionOption {
	return func(v *VisionEndpoint) {
		if version != "" {
			v.apiVersion = version
		}
	}
}

// WithVisionModelVersion sets the model-version.
func WithVisionModelVersion(version string) VisionOption {
	return func(v *VisionEndpoint) {
		if version != "" {
			v.modelVersion = version
		}
	}
}

// WithVisionTimeout sets the request timeout.
func WithVisionTimeout(d time.Duration) VisionOption {
	return func(v *VisionEndpoint) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// WithVisionMaxRetries sets the throttle retry ceiling.
func WithVisionMaxRetries(n int) VisionOption {
	return func(v *VisionEndpoint) {
		if n >= 0 {
			v.maxRetries = n
		}
	}
}

// WithVisionRateLimit sets the client-side rate limit.
func WithVisionRateLimit(perSecond float64) VisionOption {
	return func(v *VisionEndpoint) { v.rateLimit = perSecond }
}

// WithVisionClientCredentials sets the bearer-token credential triple.
func WithVisionClientCredentials(tenantID, clientID, clientSecret string) VisionOption {
	return func(v *VisionEndpoint) {
		v.tenantID = tenantID
		v.clientID = clientID
		v.clientSecret = clientSecret
	}
}

// WithVisionAuthorityHost sets the token authority base URL.
func WithVisionAuthorityHost(host string) VisionOption {
	return func(v *VisionEndpoint) {
		if host != "" {
			v.authorityHost = host
		}
	}
}

// NewVisionEndpointWithOptions creates a VisionEndpoint with functional options.
func NewVisionEndpointWithOptions(opts ...VisionOption) VisionEndpoint {
	v := NewVisionEndpoint()
	for _, opt := range opts {
		opt(&v)
	}
	return v
}

// Endpoint configures an OpenAI-compatible text embedding service.
type Endpoint struct {
	baseURL       string
	model         string
	apiKey        string
	timeout       time.Duration
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64
}

// NewEndpoint creates a new Endpoint with defaults.
func NewEndpoint() Endpoint {
	return Endpoint{
		model:         DefaultTextModel,
		timeout:       DefaultEndpointTimeout,
		maxRetries:    DefaultEndpointRetries,
		initialDelay:  DefaultInitialDelay,
		backoffFactor: DefaultBackoffFactor,
	}
}

// BaseURL returns the base URL for the endpoint.
func (e Endpoint) BaseURL() string { return e.baseURL }

// Model returns the model identifier.
func (e Endpoint) Model() string { return e.model }

// APIKey returns the API key.
func (e Endpoint) APIKey() string { return e.apiKey }

// Timeout returns the request timeout.
func (e Endpoint) Timeout() time.Duration { return e.timeout }

// MaxRetries returns the maximum retry count.
func (e Endpoint) MaxRetries() int { return e.maxRetries }

// InitialDelay returns the initial retry delay.
func (e Endpoint) InitialDelay() time.Duration { return e.initialDelay }

// BackoffFactor returns the retry backoff multiplier.
func (e Endpoint) BackoffFactor() float64 { return e.backoffFactor }

// IsConfigured returns true if the endpoint can be called.
func (e Endpoint) IsConfigured() bool {
	return e.apiKey != "" || e.baseURL != ""
}

// EndpointOption is a functional option for Endpoint.
type EndpointOption func(*Endpoint)

// WithBaseURL sets the base URL.
func WithBaseURL(url string) EndpointOption {
	return func(e *Endpoint) { e.baseURL = url }
}

// WithModel sets the model.
func WithModel(model string) EndpointOption {
	return func(e *Endpoint) {
		if model != "" {
			e.model = model
		}
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) EndpointOption {
	return func(e *Endpoint) { e.apiKey = key }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.timeout = d }
}

// WithMaxRetries sets the maximum retry count.
func WithMaxRetries(n int) EndpointOption {
	return func(e *Endpoint) { e.maxRetries = n }
}

// WithInitialDelay sets the initial retry delay.
func WithInitialDelay(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.initialDelay = d }
}

// WithBackoffFactor sets the retry backoff multiplier.
func WithBackoffFactor(f float64) EndpointOption {
	return func(e *Endpoint) { e.backoffFactor = f }
}

// NewEndpointWithOptions creates an Endpoint with functional options.
func NewEndpointWithOptions(opts ...EndpointOption) Endpoint {
	e := NewEndpoint()
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// IndexConfig describes the vector indexes.
type IndexConfig struct {
	name          string
	dimension     int
	textDimension int
	reset         bool
}

// NewIndexConfig creates an IndexConfig with defaults.
func NewIndexConfig() IndexConfig {
	return IndexConfig{
		name:          DefaultIndexName,
		dimension:     DefaultIndexDimension,
		textDimension: DefaultTextDimension,
		reset:         true,
	}
}

// Name returns the image index name.
func (i IndexConfig) Name() string { return i.name }

// TextName returns the description index name.
func (i IndexConfig) TextName() string { return i.name + textIndexSuffix }

// Dimension returns the image vector dimension.
func (i IndexConfig) Dimension() int { return i.dimension }

// TextDimension returns the description vector dimension.
func (i IndexConfig) TextDimension() int { return i.textDimension }

// Reset reports whether ingestion drops and recreates the index first.
func (i IndexConfig) Reset() bool { return i.reset }

// WithName returns a copy with the given index name.
func (i IndexConfig) WithName(name string) IndexConfig {
	if name != "" {
		i.name = name
	}
	return i
}

// WithDimension returns a copy with the given image dimension.
func (i IndexConfig) WithDimension(d int) IndexConfig {
	i.dimension = d
	return i
}

// WithTextDimension returns a copy with the given description dimension.
func (i IndexConfig) WithTextDimension(d int) IndexConfig {
	i.textDimension = d
	return i
}

// WithReset returns a copy with the reset flag set.
func (i IndexConfig) WithReset(reset bool) IndexConfig {
	i.reset = reset
	return i
}

// IngestConfig controls the ingestion pipeline.
type IngestConfig struct {
	recordLimit int
	chunkSize   int
	concurrency int
}

// NewIngestConfig creates an IngestConfig with defaults.
func NewIngestConfig() IngestConfig {
	return IngestConfig{
		recordLimit: DefaultRecordLimit,
		chunkSize:   DefaultChunkSize,
	}
}

// RecordLimit returns the maximum number of records to read. Zero or less means no limit.
func (i IngestConfig) RecordLimit() int { return i.recordLimit }

// ChunkSize returns the bulk-write chunk size, always within 1..MaxChunkSize.
func (i IngestConfig) ChunkSize() int { return i.chunkSize }

// Concurrency returns the embedding worker count. Zero means one per CPU.
func (i IngestConfig) Concurrency() int { return i.concurrency }

// WithRecordLimit returns a copy with the given record limit.
func (i IngestConfig) WithRecordLimit(n int) IngestConfig {
	i.recordLimit = n
	return i
}

// WithChunkSize returns a copy with the chunk size clamped to 1..MaxChunkSize.
func (i IngestConfig) WithChunkSize(n int) IngestConfig {
	i.chunkSize = ClampChunkSize(n)
	return i
}

// WithConcurrency returns a copy with the given worker count.
func (i IngestConfig) WithConcurrency(n int) IngestConfig {
	if n >= 0 {
		i.concurrency = n
	}
	return i
}

// ClampChunkSize bounds a chunk size to 1..MaxChunkSize.
func ClampChunkSize(n int) int {
	if n <= 0 || n > MaxChunkSize {
		return MaxChunkSize
	}
	return n
}

// BlobConfig configures the S3-compatible CSV drop.
type BlobConfig struct {
	Endpoint        string
	AccessKey       string
	SecretKey       string
	Bucket          string
	ProcessedBucket string
	UseSSL          bool
}

// SourceConfig selects and configures the record source.
type SourceConfig struct {
	kind         SourceType
	csvPath      string
	blob         BlobConfig
	ngaDBURL     string
	metBaseURL   string
	metRateLimit float64
	metWorkers   int
}

// NewSourceConfig creates a SourceConfig with defaults.
func NewSourceConfig() SourceConfig {
	return SourceConfig{
		kind: DefaultSourceType,
		blob: BlobConfig{
			Bucket:          DefaultBlobBucket,
			ProcessedBucket: DefaultProcessedBucket,
			UseSSL:          true,
		},
		metBaseURL:   DefaultMetBaseURL,
		metRateLimit: DefaultMetRateLimit,
		metWorkers:   DefaultMetWorkers,
	}
}

// Type returns the source type.
func (s SourceConfig) Type() SourceType { return s.kind }

// CSVPath returns the CSV file or directory.
func (s SourceConfig) CSVPath() string { return s.csvPath }

// Blob returns the blob storage settings.
func (s SourceConfig) Blob() BlobConfig { return s.blob }

// NGADBURL returns the NGA open-data connection string.
func (s SourceConfig) NGADBURL() string { return s.ngaDBURL }

// MetBaseURL returns the Met collection API base URL.
func (s SourceConfig) MetBaseURL() string { return s.metBaseURL }

// MetRateLimit returns the Met API request rate per second.
func (s SourceConfig) MetRateLimit() float64 { return s.metRateLimit }

// MetWorkers returns the Met preload pool size.
func (s SourceConfig) MetWorkers() int { return s.metWorkers }

// WithType returns a copy with the given source type.
func (s SourceConfig) WithType(t SourceType) SourceConfig {
	s.kind = t
	return s
}

// WithCSVPath returns a copy with the given CSV path.
func (s SourceConfig) WithCSVPath(path string) SourceConfig {
	s.csvPath = path
	return s
}

// WithBlob returns a copy with the given blob settings.
func (s SourceConfig) WithBlob(b BlobConfig) SourceConfig {
	s.blob = b
	return s
}

// WithNGADBURL returns a copy with the given NGA connection string.
func (s SourceConfig) WithNGADBURL(url string) SourceConfig {
	s.ngaDBURL = url
	return s
}

// WithMet returns a copy with the given Met API settings.
func (s SourceConfig) WithMet(baseURL string, rateLimit float64, workers int) SourceConfig {
	if baseURL != "" {
		s.metBaseURL = baseURL
	}
	if rateLimit > 0 {
		s.metRateLimit = rateLimit
	}
	if workers > 0 {
		s.metWorkers = workers
	}
	return s
}

// AppConfig holds the main application configuration.
type AppConfig struct {
	host         string
	port         int
	dataDir      string
	dbURL        string
	logLevel     string
	logFormat    LogFormat
	corsOrigins  []string
	vision       VisionEndpoint
	text         *Endpoint
	index        IndexConfig
	ingest       IngestConfig
	source       SourceConfig
	searchTopK   int
	httpCacheDir string
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDataDirectoryName
	}
	return filepath.Join(home, defaultDataDirectoryName)
}

// NewAppConfig creates a new AppConfig with defaults.
func NewAppConfig() AppConfig {
	dataDir := DefaultDataDir()
	return AppConfig{
		host:        DefaultHost,
		port:        DefaultPort,
		dataDir:     dataDir,
		dbURL:       "sqlite:///" + filepath.Join(dataDir, defaultDatabaseFileName),
		logLevel:    DefaultLogLevel,
		logFormat:   LogFormatPretty,
		corsOrigins: []string{DefaultCORSOrigins},
		vision:      NewVisionEndpoint(),
		index:       NewIndexConfig(),
		ingest:      NewIngestConfig(),
		source:      NewSourceConfig(),
		searchTopK:  DefaultSearchTopK,
	}
}

// Host returns the server host to bind to.
func (c AppConfig) Host() string { return c.host }

// Port returns the server port to listen on.
func (c AppConfig) Port() int { return c.port }

// Addr returns the combined host:port address.
func (c AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

// DataDir returns the data directory path.
func (c AppConfig) DataDir() string { return c.dataDir }

// DBURL returns the database connection URL.
func (c AppConfig) DBURL() string { return c.dbURL }

// LogLevel returns the log level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// CORSOrigins returns the allowed CORS origins.
func (c AppConfig) CORSOrigins() []string {
	origins := make([]string, len(c.corsOrigins))
	copy(origins, c.corsOrigins)
	return origins
}

// Vision returns the multimodal embedding endpoint config.
func (c AppConfig) Vision() VisionEndpoint { return c.vision }

// TextEndpoint returns the description embedding endpoint, or nil when not configured.
func (c AppConfig) TextEndpoint() *Endpoint { return c.text }

// Index returns the index config.
func (c AppConfig) Index() IndexConfig { return c.index }

// Ingest returns the ingestion config.
func (c AppConfig) Ingest() IngestConfig { return c.ingest }

// Source returns the record source config.
func (c AppConfig) Source() SourceConfig { return c.source }

// SearchTopK returns the default number of search results.
func (c AppConfig) SearchTopK() int { return c.searchTopK }

// HTTPCacheDir returns the embedding response cache directory, empty when disabled.
func (c AppConfig) HTTPCacheDir() string { return c.httpCacheDir }

// EnsureDataDir creates the data directory if it doesn't exist.
func (c AppConfig) EnsureDataDir() error {
	return os.MkdirAll(c.dataDir, 0o755)
}

// Validate checks the settings required before ingestion starts.
func (c AppConfig) Validate() error {
	if err := c.vision.Validate(); err != nil {
		return err
	}
	if c.index.Dimension() <= 0 {
		return ErrInvalidIndexDimension
	}
	return nil
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithHost sets the server host.
func WithHost(host string) AppConfigOption {
	return func(c *AppConfig) { c.host = host }
}

// WithPort sets the server port.
func WithPort(port int) AppConfigOption {
	return func(c *AppConfig) { c.port = port }
}

// WithDataDir sets the data directory.
func WithDataDir(dir string) AppConfigOption {
	return func(c *AppConfig) {
		c.dataDir = dir
		// Keep the default database inside the data directory.
		if c.dbURL == "" || strings.HasSuffix(c.dbURL, defaultDatabaseFileName) {
			c.dbURL = "sqlite:///" + filepath.Join(dir, defaultDatabaseFileName)
		}
	}
}

// WithDBURL sets the database URL.
func WithDBURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.dbURL = url }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins []string) AppConfigOption {
	return func(c *AppConfig) {
		c.corsOrigins = make([]string, len(origins))
		copy(c.corsOrigins, origins)
	}
}

// WithVision sets the multimodal embedding endpoint.
func WithVision(v VisionEndpoint) AppConfigOption {
	return func(c *AppConfig) { c.vision = v }
}

// WithTextEndpoint sets the description embedding endpoint.
func WithTextEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.text = &e }
}

// WithIndex sets the index config.
func WithIndex(i IndexConfig) AppConfigOption {
	return func(c *AppConfig) { c.index = i }
}

// WithIngest sets the ingestion config.
func WithIngest(i IngestConfig) AppConfigOption {
	return func(c *AppConfig) { c.ingest = i }
}

// WithSource sets the record source config.
func WithSource(s SourceConfig) AppConfigOption {
	return func(c *AppConfig) { c.source = s }
}

// WithSearchTopK sets the default number of search results.
func WithSearchTopK(k int) AppConfigOption {
	return func(c *AppConfig) {
		if k > 0 {
			c.searchTopK = k
		}
	}
}

// WithHTTPCacheDir sets the embedding response cache directory.
func WithHTTPCacheDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.httpCacheDir = dir }
}

// NewAppConfigWithOptions creates an AppConfig with functional options.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	c := NewAppConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Apply returns a new AppConfig with the given options applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LogAttrs returns slog attributes for logging the configuration.
// Credentials are never included.
func (c AppConfig) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("data_dir", c.dataDir),
		slog.String("log_level", c.logLevel),
		slog.String("db_url", c.maskedDBURL()),
		slog.String("vision_base_url", c.vision.BaseURL()),
		slog.Bool("vision_token_auth", c.vision.UsesToken()),
		slog.String("text_base_url", c.textBaseURL()),
		slog.String("index_name", c.index.Name()),
		slog.Int("index_dimension", c.index.Dimension()),
		slog.Int("record_limit", c.ingest.RecordLimit()),
		slog.Int("chunk_size", c.ingest.ChunkSize()),
		slog.String("source_type", string(c.source.Type())),
	}
}

func (c AppConfig) maskedDBURL() string {
	if c.dbURL == "" {
		return "(default)"
	}
	if strings.HasPrefix(c.dbURL, "sqlite:") {
		return c.dbURL
	}
	return "postgres://***@***"
}

func (c AppConfig) textBaseURL() string {
	if c.text == nil {
		return "(not configured)"
	}
	if c.text.BaseURL() == "" {
		return "(default)"
	}
	return c.text.BaseURL()
}

// ParseList parses a comma-separated string into trimmed, non-empty values.
func ParseList(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
