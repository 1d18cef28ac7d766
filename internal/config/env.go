package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds all environment-based configuration.
// Nested structs use underscore delimiter (e.g., VISION_ENDPOINT_BASE_URL).
type EnvConfig struct {
	// Host is the server host to bind to.
	// Env: HOST (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Port is the server port to listen on.
	// Env: PORT (default: 8080)
	Port int `envconfig:"PORT" default:"8080"`

	// DataDir is the data directory path.
	// Env: DATA_DIR
	// Default: ~/.artsearch
	DataDir string `envconfig:"DATA_DIR"`

	// DBURL is the index database connection URL.
	// Env: DB_URL
	// Default: sqlite:///{data_dir}/artsearch.db
	DBURL string `envconfig:"DB_URL"`

	// LogLevel is the log verbosity level.
	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// CORSAllowedOrigins is a comma-separated list of allowed origins.
	// Env: CORS_ALLOWED_ORIGINS (default: *)
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// VisionEndpoint configures the multimodal embedding service.
	VisionEndpoint VisionEnv `envconfig:"VISION_ENDPOINT"`

	// TextEndpoint configures the optional description embedding service.
	TextEndpoint EndpointEnv `envconfig:"TEXT_ENDPOINT"`

	// Index configures the vector indexes.
	Index IndexEnv `envconfig:"INDEX"`

	// Ingest configures the ingestion pipeline.
	Ingest IngestEnv `envconfig:"INGEST"`

	// Source configures where records are read from.
	Source SourceEnv `envconfig:"SOURCE"`

	// SearchTopK is the default number of search results.
	// Env: SEARCH_TOP_K (default: 3)
	SearchTopK int `envconfig:"SEARCH_TOP_K" default:"3"`

	// HTTPCacheDir is the directory for caching embedding responses to disk.
	// Env: HTTP_CACHE_DIR
	HTTPCacheDir string `envconfig:"HTTP_CACHE_DIR"`
}

// VisionEnv holds environment configuration for the multimodal embedding service.
type VisionEnv struct {
	// BaseURL is the service endpoint.
	// Env: VISION_ENDPOINT_BASE_URL
	BaseURL string `envconfig:"BASE_URL"`

	// APIKey is the subscription key.
	// Env: VISION_ENDPOINT_API_KEY
	APIKey string `envconfig:"API_KEY"`

	// APIVersion is sent as the api-version query parameter.
	// Env: VISION_ENDPOINT_API_VERSION (default: 2023-04-15)
	APIVersion string `envconfig:"API_VERSION" default:"2023-04-15"`

	// ModelVersion is sent as the model-version query parameter.
	// Env: VISION_ENDPOINT_MODEL_VERSION (default: 2024-02-01)
	ModelVersion string `envconfig:"MODEL_VERSION" default:"2024-02-01"`

	// Timeout is the request timeout in seconds.
	// Env: VISION_ENDPOINT_TIMEOUT (default: 10)
	Timeout float64 `envconfig:"TIMEOUT" default:"10"`

	// MaxRetries is how many times a throttled request is retried.
	// Env: VISION_ENDPOINT_MAX_RETRIES (default: 3)
	MaxRetries int `envconfig:"MAX_RETRIES" default:"3"`

	// RateLimit caps requests per second, 0 disables it.
	// Env: VISION_ENDPOINT_RATE_LIMIT (default: 0)
	RateLimit float64 `envconfig:"RATE_LIMIT" default:"0"`

	// TenantID, ClientID and ClientSecret enable bearer-token authentication.
	// Env: VISION_ENDPOINT_TENANT_ID, VISION_ENDPOINT_CLIENT_ID, VISION_ENDPOINT_CLIENT_SECRET
	TenantID     string `envconfig:"TENANT_ID"`
	ClientID     string `envconfig:"CLIENT_ID"`
	ClientSecret string `envconfig:"CLIENT_SECRET"`

	// AuthorityHost is the token authority.
	// Env: VISION_ENDPOINT_AUTHORITY_HOST (default: https://login.microsoftonline.com)
	AuthorityHost string `envconfig:"AUTHORITY_HOST" default:"https://login.microsoftonline.com"`
}

// EndpointEnv holds environment configuration for an OpenAI-compatible endpoint.
type EndpointEnv struct {
	// BaseURL is the base URL for the endpoint.
	// Env: TEXT_ENDPOINT_BASE_URL
	BaseURL string `envconfig:"BASE_URL"`

	// Model is the embedding model identifier.
	// Env: TEXT_ENDPOINT_MODEL (default: text-embedding-3-small)
	Model string `envconfig:"MODEL" default:"text-embedding-3-small"`

	// APIKey is the API key for authentication.
	// Env: TEXT_ENDPOINT_API_KEY
	APIKey string `envconfig:"API_KEY"`

	// Timeout is the request timeout in seconds.
	// Env: TEXT_ENDPOINT_TIMEOUT (default: 60)
	Timeout float64 `envconfig:"TIMEOUT" default:"60"`

	// MaxRetries is the maximum number of retries.
	// Env: TEXT_ENDPOINT_MAX_RETRIES (default: 5)
	MaxRetries int `envconfig:"MAX_RETRIES" default:"5"`

	// InitialDelay is the initial retry delay in seconds.
	// Env: TEXT_ENDPOINT_INITIAL_DELAY (default: 2.0)
	InitialDelay float64 `envconfig:"INITIAL_DELAY" default:"2.0"`

	// BackoffFactor is the retry backoff multiplier.
	// Env: TEXT_ENDPOINT_BACKOFF_FACTOR (default: 2.0)
	BackoffFactor float64 `envconfig:"BACKOFF_FACTOR" default:"2.0"`
}

// IndexEnv holds environment configuration for the vector indexes.
type IndexEnv struct {
	// Name is the image index name.
	// Env: INDEX_NAME (default: gallerydata-v)
	Name string `envconfig:"NAME" default:"gallerydata-v"`

	// Dimension is the image vector dimension.
	// Env: INDEX_DIMENSION (default: 1024)
	Dimension int `envconfig:"DIMENSION" default:"1024"`

	// TextDimension is the description vector dimension.
	// Env: INDEX_TEXT_DIMENSION (default: 1536)
	TextDimension int `envconfig:"TEXT_DIMENSION" default:"1536"`

	// Reset drops and recreates the index before ingestion.
	// Env: INDEX_RESET (default: true)
	Reset bool `envconfig:"RESET" default:"true"`
}

// IngestEnv holds environment configuration for the ingestion pipeline.
type IngestEnv struct {
	// RecordLimit caps records read from the source, zero or less means no limit.
	// Env: INGEST_RECORD_LIMIT (default: -1)
	RecordLimit int `envconfig:"RECORD_LIMIT" default:"-1"`

	// ChunkSize is the number of documents per bulk write.
	// Env: INGEST_CHUNK_SIZE (default: 1000)
	ChunkSize int `envconfig:"CHUNK_SIZE" default:"1000"`

	// Concurrency is the number of embedding workers, 0 means one per CPU.
	// Env: INGEST_CONCURRENCY (default: 0)
	Concurrency int `envconfig:"CONCURRENCY" default:"0"`
}

// SourceEnv holds environment configuration for the record source.
type SourceEnv struct {
	// Type is csv, blob, nga or met.
	// Env: SOURCE_TYPE (default: csv)
	Type string `envconfig:"TYPE" default:"csv"`

	// CSVPath is a CSV file or a directory of CSV files.
	// Env: SOURCE_CSV_PATH
	CSVPath string `envconfig:"CSV_PATH"`

	// Blob configures the S3-compatible CSV drop.
	Blob BlobEnv `envconfig:"BLOB"`

	// NGADBURL is the NGA open-data Postgres connection string.
	// Env: SOURCE_NGA_DB_URL
	NGADBURL string `envconfig:"NGA_DB_URL"`

	// MetBaseURL is the Met collection API.
	// Env: SOURCE_MET_BASE_URL
	MetBaseURL string `envconfig:"MET_BASE_URL" default:"https://collectionapi.metmuseum.org/public/collection/v1"`

	// MetRateLimit caps Met API requests per second.
	// Env: SOURCE_MET_RATE_LIMIT (default: 80)
	MetRateLimit float64 `envconfig:"MET_RATE_LIMIT" default:"80"`

	// MetWorkers is the Met preload pool size.
	// Env: SOURCE_MET_WORKERS (default: 8)
	MetWorkers int `envconfig:"MET_WORKERS" default:"8"`
}

// BlobEnv holds environment configuration for blob storage.
type BlobEnv struct {
	// Env: SOURCE_BLOB_ENDPOINT
	Endpoint string `envconfig:"ENDPOINT"`
	// Env: SOURCE_BLOB_ACCESS_KEY
	AccessKey string `envconfig:"ACCESS_KEY"`
	// Env: SOURCE_BLOB_SECRET_KEY
	SecretKey string `envconfig:"SECRET_KEY"`
	// Env: SOURCE_BLOB_BUCKET (default: images)
	Bucket string `envconfig:"BUCKET" default:"images"`
	// Env: SOURCE_BLOB_PROCESSED_BUCKET (default: processed)
	ProcessedBucket string `envconfig:"PROCESSED_BUCKET" default:"processed"`
	// Env: SOURCE_BLOB_USE_SSL (default: true)
	UseSSL bool `envconfig:"USE_SSL" default:"true"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// LoadFromEnvWithPrefix loads configuration with a custom prefix.
// For example, prefix "ARTSEARCH" would require ARTSEARCH_DATA_DIR instead of DATA_DIR.
func LoadFromEnvWithPrefix(prefix string) (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() (AppConfig, error) {
	cfg := NewAppConfig()

	if e.Host != "" {
		cfg = applyOption(cfg, WithHost(e.Host))
	}
	if e.Port != 0 {
		cfg = applyOption(cfg, WithPort(e.Port))
	}
	if e.DataDir != "" {
		cfg = applyOption(cfg, WithDataDir(e.DataDir))
	}
	if e.DBURL != "" {
		cfg = applyOption(cfg, WithDBURL(e.DBURL))
	}
	if e.LogLevel != "" {
		cfg = applyOption(cfg, WithLogLevel(e.LogLevel))
	}
	if e.LogFormat != "" {
		cfg = applyOption(cfg, WithLogFormat(parseLogFormat(e.LogFormat)))
	}
	if e.CORSAllowedOrigins != "" {
		cfg = applyOption(cfg, WithCORSOrigins(ParseList(e.CORSAllowedOrigins)))
	}

	cfg = applyOption(cfg, WithVision(e.VisionEndpoint.ToVisionEndpoint()))

	if e.TextEndpoint.IsConfigured() {
		cfg = applyOption(cfg, WithTextEndpoint(e.TextEndpoint.ToEndpoint()))
	}

	cfg = applyOption(cfg, WithIndex(e.Index.ToIndexConfig()))
	cfg = applyOption(cfg, WithIngest(e.Ingest.ToIngestConfig()))

	source, err := e.Source.ToSourceConfig()
	if err != nil {
		return AppConfig{}, err
	}
	cfg = applyOption(cfg, WithSource(source))

	if e.SearchTopK > 0 {
		cfg = applyOption(cfg, WithSearchTopK(e.SearchTopK))
	}
	if e.HTTPCacheDir != "" {
		cfg = applyOption(cfg, WithHTTPCacheDir(e.HTTPCacheDir))
	}

	return cfg, nil
}

// applyOption applies an option to the config.
func applyOption(cfg AppConfig, opt AppConfigOption) AppConfig {
	opt(&cfg)
	return cfg
}

// ToVisionEndpoint converts VisionEnv to VisionEndpoint.
func (v VisionEnv) ToVisionEndpoint() VisionEndpoint {
	return NewVisionEndpointWithOptions(
		WithVisionBaseURL(v.BaseURL),
		WithVisionAPIKey(v.APIKey),
		WithVisionAPIVersion(v.APIVersion),
		WithVisionModelVersion(v.ModelVersion),
		WithVisionTimeout(seconds(v.Timeout)),
		WithVisionMaxRetries(v.MaxRetries),
		WithVisionRateLimit(v.RateLimit),
		WithVisionClientCredentials(v.TenantID, v.ClientID, v.ClientSecret),
		WithVisionAuthorityHost(v.AuthorityHost),
	)
}

// IsConfigured returns true if the endpoint has an address or key.
func (e EndpointEnv) IsConfigured() bool {
	return e.BaseURL != "" || e.APIKey != ""
}

// ToEndpoint converts EndpointEnv to Endpoint.
func (e EndpointEnv) ToEndpoint() Endpoint {
	opts := []EndpointOption{
		WithModel(e.Model),
		WithTimeout(seconds(e.Timeout)),
		WithMaxRetries(e.MaxRetries),
		WithInitialDelay(seconds(e.InitialDelay)),
		WithBackoffFactor(e.BackoffFactor),
	}
	if e.BaseURL != "" {
		opts = append(opts, WithBaseURL(e.BaseURL))
	}
	if e.APIKey != "" {
		opts = append(opts, WithAPIKey(e.APIKey))
	}
	return NewEndpointWithOptions(opts...)
}

// ToIndexConfig converts IndexEnv to IndexConfig.
func (i IndexEnv) ToIndexConfig() IndexConfig {
	return NewIndexConfig().
		WithName(i.Name).
		WithDimension(i.Dimension).
		WithTextDimension(i.TextDimension).
		WithReset(i.Reset)
}

// ToIngestConfig converts IngestEnv to IngestConfig.
func (i IngestEnv) ToIngestConfig() IngestConfig {
	return NewIngestConfig().
		WithRecordLimit(i.RecordLimit).
		WithChunkSize(i.ChunkSize).
		WithConcurrency(i.Concurrency)
}

// ToSourceConfig converts SourceEnv to SourceConfig.
func (s SourceEnv) ToSourceConfig() (SourceConfig, error) {
	kind, err := ParseSourceType(s.Type)
	if err != nil {
		return SourceConfig{}, err
	}
	return NewSourceConfig().
		WithType(kind).
		WithCSVPath(s.CSVPath).
		WithBlob(BlobConfig{
			Endpoint:        s.Blob.Endpoint,
			AccessKey:       s.Blob.AccessKey,
			SecretKey:       s.Blob.SecretKey,
			Bucket:          s.Blob.Bucket,
			ProcessedBucket: s.Blob.ProcessedBucket,
			UseSSL:          s.Blob.UseSSL,
		}).
		WithNGADBURL(s.NGADBURL).
		WithMet(s.MetBaseURL, s.MetRateLimit, s.MetWorkers), nil
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

// parseLogFormat parses a log format string.
func parseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}
