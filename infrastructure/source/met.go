package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"

	"github.com/helixml/artsearch/domain/artwork"
	"github.com/helixml/artsearch/infrastructure/persistence"
	"github.com/helixml/artsearch/internal/config"
)

// Met reads records from the local cache of Met collection objects.
type Met struct {
	store *persistence.MetObjectStore
}

// NewMet creates a Met source.
func NewMet(store *persistence.MetObjectStore) *Met {
	return &Met{store: store}
}

// Records reads up to limit cached objects that have an image. A limit <= 0
// reads everything.
func (s *Met) Records(ctx context.Context, limit int) ([]artwork.Record, error) {
	objects, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	records := make([]artwork.Record, len(objects))
	for i, o := range objects {
		records[i] = metRecord(o)
	}
	return records, nil
}

func metRecord(o persistence.MetObject) artwork.Record {
	return artwork.NewRecord(strconv.Itoa(o.ObjectID), o.PrimaryImageSmall,
		artwork.WithAccessionNum(o.AccessionNumber),
		artwork.WithTitle(o.Title),
		artwork.WithAttribution(o.ArtistAlphaSort),
		artwork.WithDisplayDate(o.ObjectDate),
		artwork.WithDimensions(o.Dimensions),
		artwork.WithLocation(o.GalleryNumber),
		artwork.WithMedium(o.Medium),
		artwork.WithMetadata("department", o.Department),
		artwork.WithMetadata("classification", o.Classification),
		artwork.WithMetadata("culture", o.Culture),
	)
}

// MetCache stores fetched Met objects.
type MetCache interface {
	IDs(ctx context.Context) (map[int]struct{}, error)
	Upsert(ctx context.Context, objects []persistence.MetObject) error
}

// PreloadReport summarises a preload run.
type PreloadReport struct {
	Found   int
	Cached  int
	Fetched int
	Stored  int
	Skipped int
	Failed  int
}

// MetPreloader copies objects with images from the Met collection API into
// the local cache, skipping objects that are already cached.
type MetPreloader struct {
	baseURL    string
	httpClient *http.Client
	cache      MetCache
	limiter    *rate.Limiter
	workers    int
	flushSize  int
	logger     *slog.Logger
}

// MetOption configures a MetPreloader.
type MetOption func(*MetPreloader)

// WithMetBaseURL sets the collection API base URL.
func WithMetBaseURL(url string) MetOption {
	return func(p *MetPreloader) {
		if url != "" {
			p.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithMetHTTPClient sets the HTTP client.
func WithMetHTTPClient(c *http.Client) MetOption {
	return func(p *MetPreloader) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// WithMetRateLimit caps API requests per second.
func WithMetRateLimit(perSecond float64) MetOption {
	return func(p *MetPreloader) {
		if perSecond > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithMetWorkers sets the number of concurrent object fetches.
func WithMetWorkers(n int) MetOption {
	return func(p *MetPreloader) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithMetLogger sets the logger.
func WithMetLogger(l *slog.Logger) MetOption {
	return func(p *MetPreloader) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewMetPreloader creates a preloader that writes to cache.
func NewMetPreloader(cache MetCache, opts ...MetOption) *MetPreloader {
	p := &MetPreloader{
		baseURL:    config.DefaultMetBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      cache,
		limiter:    rate.NewLimiter(rate.Limit(config.DefaultMetRateLimit), 1),
		workers:    config.DefaultMetWorkers,
		flushSize:  100,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type metSearchResponse struct {
	Total     int   `json:"total"`
	ObjectIDs []int `json:"objectIDs"`
}

// errMetNotFound marks an object ID the API no longer serves.
var errMetNotFound = errors.New("met object not found")

// Preload fetches every object with an image that is not yet cached.
// Individual object failures are logged and counted; the run continues.
func (p *MetPreloader) Preload(ctx context.Context) (PreloadReport, error) {
	var search metSearchResponse
	if err := p.getJSON(ctx, "/search?hasImages=true&q=*", &search); err != nil {
		return PreloadReport{}, fmt.Errorf("search met objects: %w", err)
	}

	cached, err := p.cache.IDs(ctx)
	if err != nil {
		return PreloadReport{}, err
	}

	todo := make([]int, 0, len(search.ObjectIDs))
	for _, id := range search.ObjectIDs {
		if _, ok := cached[id]; !ok {
			todo = append(todo, id)
		}
	}

	report := PreloadReport{Found: len(search.ObjectIDs), Cached: len(search.ObjectIDs) - len(todo)}
	p.logger.InfoContext(ctx, "preloading met objects",
		"found", report.Found,
		"cached", report.Cached,
		"remaining", len(todo),
	)

	pool, err := ants.NewPool(p.workers)
	if err != nil {
		return report, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		fetched, stored, skipped, failed atomic.Int64
		wg                               sync.WaitGroup
		mu                               sync.Mutex
		pending                          []persistence.MetObject
		storeErr                         error
	)

	flush := func(batch []persistence.MetObject) {
		if len(batch) == 0 {
			return
		}
		if err := p.cache.Upsert(ctx, batch); err != nil {
			mu.Lock()
			storeErr = errors.Join(storeErr, err)
			mu.Unlock()
			return
		}
		stored.Add(int64(len(batch)))
	}

	for _, id := range todo {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()

			obj, err := p.fetchObject(ctx, id)
			switch {
			case errors.Is(err, errMetNotFound):
				skipped.Add(1)
				return
			case err != nil:
				if ctx.Err() == nil {
					failed.Add(1)
					p.logger.WarnContext(ctx, "skipping met object", "object_id", id, "error", err)
				}
				return
			}
			fetched.Add(1)
			if obj.PrimaryImageSmall == "" {
				skipped.Add(1)
				return
			}

			mu.Lock()
			pending = append(pending, obj)
			var batch []persistence.MetObject
			if len(pending) >= p.flushSize {
				batch, pending = pending, nil
			}
			mu.Unlock()
			flush(batch)
		})
		if err != nil {
			wg.Done()
			return report, fmt.Errorf("submit met fetch: %w", err)
		}
	}
	wg.Wait()
	flush(pending)

	report.Fetched = int(fetched.Load())
	report.Stored = int(stored.Load())
	report.Skipped = int(skipped.Load())
	report.Failed = int(failed.Load())

	p.logger.InfoContext(ctx, "met preload complete",
		"found", report.Found,
		"fetched", report.Fetched,
		"stored", report.Stored,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, storeErr
}

func (p *MetPreloader) fetchObject(ctx context.Context, id int) (persistence.MetObject, error) {
	var obj persistence.MetObject
	if err := p.getJSON(ctx, "/objects/"+strconv.Itoa(id), &obj); err != nil {
		return persistence.MetObject{}, err
	}
	obj.FetchedAt = time.Now().UTC()
	return obj, nil
}

func (p *MetPreloader) getJSON(ctx context.Context, path string, dst any) error {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return errMetNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

var (
	_ artwork.Source = (*Met)(nil)
	_ MetCache       = (*persistence.MetObjectStore)(nil)
)
