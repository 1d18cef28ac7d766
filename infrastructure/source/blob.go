package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/helixml/artsearch/domain/artwork"
	"github.com/helixml/artsearch/internal/config"
)

// ErrMissingBlobEndpoint indicates blob storage was selected without an endpoint.
var ErrMissingBlobEndpoint = errors.New("blob source requires an endpoint")

// ObjectStore is the slice of an S3-compatible store the blob source needs.
type ObjectStore interface {
	List(ctx context.Context, bucket string) ([]string, error)
	Read(ctx context.Context, bucket, key string) ([]byte, error)
	Move(ctx context.Context, fromBucket, toBucket, key string) error
}

// MinioStore implements ObjectStore with minio-go.
type MinioStore struct {
	client *minio.Client
}

// NewMinioStore connects to the configured endpoint.
func NewMinioStore(cfg config.BlobConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, ErrMissingBlobEndpoint
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}
	return &MinioStore{client: client}, nil
}

// List returns every object key in bucket.
func (s *MinioStore) List(ctx context.Context, bucket string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", bucket, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// Read downloads an object.
func (s *MinioStore) Read(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", bucket, key, err)
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Move copies an object to another bucket, then deletes the original.
func (s *MinioStore) Move(ctx context.Context, fromBucket, toBucket, key string) error {
	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: toBucket, Object: key},
		minio.CopySrcOptions{Bucket: fromBucket, Object: key},
	)
	if err != nil {
		return fmt.Errorf("copy %s/%s to %s: %w", fromBucket, key, toBucket, err)
	}
	if err := s.client.RemoveObject(ctx, fromBucket, key, minio.RemoveObjectOptions{}); err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return nil
		}
		return fmt.Errorf("remove %s/%s: %w", fromBucket, key, err)
	}
	return nil
}

// Blob reads CSV objects dropped into a bucket. Objects that were read are
// moved to the processed bucket when the run is acknowledged.
type Blob struct {
	store     ObjectStore
	bucket    string
	processed string
	logger    *slog.Logger

	mu       sync.Mutex
	consumed []string
}

// NewBlob creates a blob source.
func NewBlob(store ObjectStore, bucket, processed string, logger *slog.Logger) *Blob {
	if logger == nil {
		logger = slog.Default()
	}
	return &Blob{store: store, bucket: bucket, processed: processed, logger: logger}
}

// Records reads up to limit records from the bucket's CSV objects in key
// order. A limit <= 0 reads everything.
func (s *Blob) Records(ctx context.Context, limit int) ([]artwork.Record, error) {
	keys, err := s.store.List(ctx, s.bucket)
	if err != nil {
		return nil, err
	}
	csvKeys := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.HasSuffix(strings.ToLower(k), ".csv") {
			csvKeys = append(csvKeys, k)
		}
	}
	sort.Strings(csvKeys)

	var records []artwork.Record
	var consumed []string
	for _, key := range csvKeys {
		s.logger.InfoContext(ctx, "downloading blob", "bucket", s.bucket, "key", key)
		data, err := s.store.Read(ctx, s.bucket, key)
		if err != nil {
			return nil, err
		}
		parsed, err := ParseCSV(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", key, err)
		}
		records = append(records, parsed...)
		consumed = append(consumed, key)
		if limit > 0 && len(records) >= limit {
			records = records[:limit]
			break
		}
	}

	s.mu.Lock()
	s.consumed = consumed
	s.mu.Unlock()
	return records, nil
}

// Acknowledge moves every object read by the last Records call to the
// processed bucket.
func (s *Blob) Acknowledge(ctx context.Context) error {
	s.mu.Lock()
	keys := s.consumed
	s.consumed = nil
	s.mu.Unlock()

	var errs []error
	for _, key := range keys {
		if err := s.store.Move(ctx, s.bucket, s.processed, key); err != nil {
			errs = append(errs, err)
			continue
		}
		s.logger.InfoContext(ctx, "moved blob to processed bucket", "key", key, "bucket", s.processed)
	}
	return errors.Join(errs...)
}

var (
	_ artwork.Source       = (*Blob)(nil)
	_ artwork.Acknowledger = (*Blob)(nil)
	_ ObjectStore          = (*MinioStore)(nil)
)
