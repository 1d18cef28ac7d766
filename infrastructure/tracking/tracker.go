// Package tracking reports ingestion progress.
package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/helixml/artsearch/domain/search"
)

// Progress is a snapshot of one index's write progress.
type Progress struct {
	Index   string
	Written int
	Total   int
	At      time.Time
}

// Done reports whether every embedded document has been written.
func (p Progress) Done() bool {
	return p.Total > 0 && p.Written >= p.Total
}

// Percent returns the written share in [0, 100].
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	return min(float64(p.Written)/float64(p.Total)*100, 100)
}

// String renders the progress as "written/total (pct%)".
func (p Progress) String() string {
	return fmt.Sprintf("%d/%d (%.0f%%)", p.Written, p.Total, p.Percent())
}

// Reporter receives progress updates.
type Reporter interface {
	OnProgress(ctx context.Context, p Progress) error
}

// Callback returns an ingestion progress callback that forwards to r under
// the given index name. Reporter errors are dropped.
func Callback(ctx context.Context, r Reporter, index string) search.ChunkProgress {
	return func(written, total int) {
		_ = r.OnProgress(ctx, Progress{
			Index:   index,
			Written: written,
			Total:   total,
			At:      time.Now(),
		})
	}
}
