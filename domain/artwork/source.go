package artwork

import "context"

// Source produces the records to ingest. limit <= 0 means no limit.
type Source interface {
	Records(ctx context.Context, limit int) ([]Record, error)
}

// Acknowledger is implemented by sources that must be told a run consumed
// their input, for example to move processed files aside.
type Acknowledger interface {
	Acknowledge(ctx context.Context) error
}
