package search

import "github.com/helixml/artsearch/domain/artwork"

// RecordFailure is called when a record cannot be embedded. The record is
// left out of the index.
type RecordFailure func(record artwork.Record, err error)

// ChunkFailure is called when a bulk write fails. index is the zero-based
// chunk number and size the number of documents it held.
type ChunkFailure func(index, size int, err error)

// ChunkProgress is called after each chunk is written successfully.
// written is the running total of documents stored; total is the number
// of embedded documents in the run.
type ChunkProgress func(written, total int)

// IngestOption configures the behaviour of an ingestion run.
type IngestOption func(*IngestConfig)

// IngestConfig holds the resolved configuration for an ingestion run.
type IngestConfig struct {
	recordFailure RecordFailure
	chunkFailure  ChunkFailure
	progress      ChunkProgress
}

// NewIngestConfig applies all options and returns the resolved config.
func NewIngestConfig(opts ...IngestOption) IngestConfig {
	var cfg IngestConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// RecordFailure returns the record failure callback, or nil if none was set.
func (c IngestConfig) RecordFailure() RecordFailure { return c.recordFailure }

// ChunkFailure returns the chunk failure callback, or nil if none was set.
func (c IngestConfig) ChunkFailure() ChunkFailure { return c.chunkFailure }

// Progress returns the progress callback, or nil if none was set.
func (c IngestConfig) Progress() ChunkProgress { return c.progress }

// WithRecordFailure registers a callback for records dropped during embedding.
func WithRecordFailure(fn RecordFailure) IngestOption {
	return func(c *IngestConfig) { c.recordFailure = fn }
}

// WithChunkFailure registers a callback for chunks the index rejected.
func WithChunkFailure(fn ChunkFailure) IngestOption {
	return func(c *IngestConfig) { c.chunkFailure = fn }
}

// WithProgress registers a callback invoked after each chunk is stored.
func WithProgress(fn ChunkProgress) IngestOption {
	return func(c *IngestConfig) { c.progress = fn }
}
