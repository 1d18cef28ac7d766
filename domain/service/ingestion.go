package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/helixml/artsearch/domain/artwork"
	"github.com/helixml/artsearch/domain/search"
	"github.com/helixml/artsearch/internal/log"
)

// ChunkWriteError reports a bulk write that the index rejected.
type ChunkWriteError struct {
	Index int
	Size  int
	Err   error
}

// Error implements error.
func (e *ChunkWriteError) Error() string {
	return fmt.Sprintf("write chunk %d (%d documents): %v", e.Index, e.Size, e.Err)
}

// Unwrap returns the underlying index error.
func (e *ChunkWriteError) Unwrap() error { return e.Err }

// Report summarises an ingestion run.
type Report struct {
	RunID         string
	Records       int
	Embedded      int
	Failed        int
	Chunks        int
	ChunksWritten int
	ChunksFailed  int
	Duplicates    int
	Written       int
}

// LogAttrs returns the report as slog attributes.
func (r Report) LogAttrs() []any {
	return []any{
		"records", r.Records,
		"embedded", r.Embedded,
		"failed", r.Failed,
		slog.Group("chunks",
			slog.Int("total", r.Chunks),
			slog.Int("written", r.ChunksWritten),
			slog.Int("failed", r.ChunksFailed),
		),
		"duplicates", r.Duplicates,
		"written", r.Written,
	}
}

// Ingestion embeds records concurrently and writes them to an index in
// chunks. Records that fail to embed and chunks that fail to write are
// logged and skipped; neither aborts the run.
type Ingestion struct {
	embedder    RecordEmbedder
	writer      search.Writer
	concurrency int
	chunkSize   int
	dimension   int
	logger      *slog.Logger
}

// IngestionOption configures an Ingestion.
type IngestionOption func(*Ingestion)

// WithConcurrency sets the number of records embedded at once.
// Values <= 0 use one worker per CPU.
func WithConcurrency(n int) IngestionOption {
	return func(s *Ingestion) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithChunkSize sets the number of documents per bulk write, capped at
// search.MaxBulkSize.
func WithChunkSize(n int) IngestionOption {
	return func(s *Ingestion) {
		if n > 0 {
			s.chunkSize = min(n, search.MaxBulkSize)
		}
	}
}

// WithDimension rejects vectors whose length differs from n before they
// reach the index. Zero disables the check.
func WithDimension(n int) IngestionOption {
	return func(s *Ingestion) {
		if n > 0 {
			s.dimension = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) IngestionOption {
	return func(s *Ingestion) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewIngestion creates an ingestion service.
func NewIngestion(embedder RecordEmbedder, writer search.Writer, opts ...IngestionOption) (*Ingestion, error) {
	if embedder == nil {
		return nil, errors.New("NewIngestion: nil embedder")
	}
	if writer == nil {
		return nil, errors.New("NewIngestion: nil writer")
	}
	s := &Ingestion{
		embedder:    embedder,
		writer:      writer,
		concurrency: runtime.GOMAXPROCS(0),
		chunkSize:   search.MaxBulkSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Concurrency returns the worker count.
func (s *Ingestion) Concurrency() int { return s.concurrency }

// ChunkSize returns the bulk write size.
func (s *Ingestion) ChunkSize() int { return s.chunkSize }

// FromSource reads up to limit records from src and runs them. Sources that
// implement artwork.Acknowledger are acknowledged after a run that was not
// cancelled.
func (s *Ingestion) FromSource(ctx context.Context, src artwork.Source, limit int, opts ...search.IngestOption) (Report, error) {
	records, err := src.Records(ctx, limit)
	if err != nil {
		return Report{}, fmt.Errorf("read records: %w", err)
	}
	records = artwork.Limit(records, limit)

	report, err := s.Run(ctx, records, opts...)
	if err != nil {
		return report, err
	}

	if ack, ok := src.(artwork.Acknowledger); ok {
		if err := ack.Acknowledge(ctx); err != nil {
			return report, fmt.Errorf("acknowledge source: %w", err)
		}
	}
	return report, nil
}

// Run embeds every record, then writes the embedded documents chunk by
// chunk. It returns an error only when ctx is cancelled; in that case no
// chunk is written after cancellation.
func (s *Ingestion) Run(ctx context.Context, records []artwork.Record, opts ...search.IngestOption) (Report, error) {
	cfg := search.NewIngestConfig(opts...)

	report := Report{RunID: uuid.NewString(), Records: len(records)}
	ctx = log.WithRunID(ctx, report.RunID)

	s.logger.InfoContext(ctx, "embedding records",
		"records", len(records),
		"concurrency", s.concurrency,
	)

	embedded, err := s.embedAll(ctx, records, cfg)
	report.Embedded = len(embedded)
	report.Failed = len(records) - len(embedded)
	if err != nil {
		return report, err
	}

	s.writeAll(ctx, embedded, cfg, &report)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	s.logger.InfoContext(ctx, "ingestion complete", report.LogAttrs()...)
	return report, nil
}

// embedAll fans records out to at most s.concurrency workers. It returns
// once every started worker has finished.
func (s *Ingestion) embedAll(ctx context.Context, records []artwork.Record, cfg search.IngestConfig) ([]artwork.EmbeddedRecord, error) {
	acc := NewAccumulator(len(records))
	sem := semaphore.NewWeighted(int64(s.concurrency))
	var g errgroup.Group

	var stopErr error
	for i, record := range records {
		if err := sem.Acquire(ctx, 1); err != nil {
			stopErr = err
			break
		}
		if err := ctx.Err(); err != nil {
			sem.Release(1)
			stopErr = err
			break
		}
		g.Go(func() error {
			defer sem.Release(1)

			embedded, err := s.embedOne(ctx, record)
			if err != nil {
				s.recordFailed(ctx, cfg, record, err)
				return nil
			}
			acc.Add(i, embedded)
			return nil
		})
	}
	_ = g.Wait()

	if stopErr == nil {
		stopErr = ctx.Err()
	}
	return acc.Records(), stopErr
}

func (s *Ingestion) embedOne(ctx context.Context, record artwork.Record) (artwork.EmbeddedRecord, error) {
	if err := record.Validate(); err != nil {
		return artwork.EmbeddedRecord{}, err
	}
	vector, err := s.embedder.Embed(ctx, record)
	if err != nil {
		return artwork.EmbeddedRecord{}, err
	}
	if s.dimension > 0 && len(vector) != s.dimension {
		return artwork.EmbeddedRecord{}, fmt.Errorf("%w: got %d values, index expects %d",
			search.ErrDimensionMismatch, len(vector), s.dimension)
	}
	return artwork.NewEmbeddedRecord(record, vector)
}

func (s *Ingestion) recordFailed(ctx context.Context, cfg search.IngestConfig, record artwork.Record, err error) {
	if ctx.Err() == nil {
		s.logger.WarnContext(ctx, "skipping record",
			"id", record.ID(),
			"title", record.Title(),
			"image_url", record.ImageURL(),
			"error", err,
		)
	}
	if fn := cfg.RecordFailure(); fn != nil {
		fn(record, err)
	}
}

// writeAll upserts the documents sequentially, one chunk per call.
func (s *Ingestion) writeAll(ctx context.Context, embedded []artwork.EmbeddedRecord, cfg search.IngestConfig, report *Report) {
	docs := dedupe(embedded)
	if report.Duplicates = len(embedded) - len(docs); report.Duplicates > 0 {
		s.logger.WarnContext(ctx, "dropped duplicate object ids, keeping the last occurrence",
			"duplicates", report.Duplicates,
		)
	}

	chunks := Chunk(docs, s.chunkSize)
	report.Chunks = len(chunks)

	for i, chunk := range chunks {
		if ctx.Err() != nil {
			return
		}

		if err := s.writer.BulkUpsert(ctx, chunk); err != nil {
			cwErr := &ChunkWriteError{Index: i, Size: len(chunk), Err: err}
			report.ChunksFailed++
			s.logger.WarnContext(ctx, "chunk could not be saved to the index, continuing",
				"chunk", i,
				"size", len(chunk),
				"error", err,
			)
			if fn := cfg.ChunkFailure(); fn != nil {
				fn(i, len(chunk), cwErr)
			}
			continue
		}

		report.ChunksWritten++
		report.Written += len(chunk)
		s.logger.DebugContext(ctx, "chunk written", "chunk", i, "size", len(chunk))
		if fn := cfg.Progress(); fn != nil {
			fn(report.Written, len(docs))
		}
	}
}

// dedupe converts records to documents with one document per object ID.
// A later record replaces an earlier one in place.
func dedupe(embedded []artwork.EmbeddedRecord) []artwork.Document {
	docs := make([]artwork.Document, 0, len(embedded))
	seen := make(map[string]int, len(embedded))
	for _, e := range embedded {
		doc := e.Document()
		if i, ok := seen[doc.ObjectID]; ok {
			docs[i] = doc
			continue
		}
		seen[doc.ObjectID] = len(docs)
		docs = append(docs, doc)
	}
	return docs
}
