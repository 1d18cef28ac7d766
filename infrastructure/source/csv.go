// Package source reads artwork records from the collections artsearch
// ingests: CSV files, CSV drops in S3-compatible storage, the NGA open-data
// Postgres database and a local cache of the Met collection API.
package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/helixml/artsearch/domain/artwork"
)

// ErrMissingColumns indicates a CSV header without the required columns.
var ErrMissingColumns = errors.New("csv must contain objectId and imageUrl columns")

// Column names, matched case-insensitively.
const (
	columnObjectID     = "objectid"
	columnImageURL     = "imageurl"
	columnArtist       = "artist"
	columnTitle        = "title"
	columnCreationDate = "creationdate"
	columnAccessionNum = "accessionnum"
	columnMedium       = "medium"
	columnDimensions   = "dimensions"
	columnLocation     = "location"
)

// ParseCSV reads records from CSV data with a header row. Columns other than
// the known ones become record metadata under their header name.
func ParseCSV(r io.Reader) ([]artwork.Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrMissingColumns
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimPrefix(strings.TrimSpace(name), "\ufeff")
		header[i] = name
		index[strings.ToLower(name)] = i
	}
	if _, ok := index[columnObjectID]; !ok {
		return nil, ErrMissingColumns
	}
	if _, ok := index[columnImageURL]; !ok {
		return nil, ErrMissingColumns
	}

	known := map[string]func(string) artwork.RecordOption{
		columnArtist:       artwork.WithAttribution,
		columnTitle:        artwork.WithTitle,
		columnCreationDate: artwork.WithDisplayDate,
		columnAccessionNum: artwork.WithAccessionNum,
		columnMedium:       artwork.WithMedium,
		columnDimensions:   artwork.WithDimensions,
		columnLocation:     artwork.WithLocation,
	}

	var records []artwork.Record
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		field := func(i int) string {
			if i < len(row) {
				return row[i]
			}
			return ""
		}

		var opts []artwork.RecordOption
		for i, name := range header {
			lower := strings.ToLower(name)
			if lower == columnObjectID || lower == columnImageURL {
				continue
			}
			value := strings.TrimSpace(field(i))
			if opt, ok := known[lower]; ok {
				opts = append(opts, opt(value))
				continue
			}
			if value != "" {
				opts = append(opts, artwork.WithMetadata(name, value))
			}
		}

		records = append(records, artwork.NewRecord(
			field(index[columnObjectID]),
			field(index[columnImageURL]),
			opts...,
		))
	}
	return records, nil
}

// CSV reads records from a CSV file or from every .csv file in a directory.
type CSV struct {
	path string
}

// NewCSV creates a CSV source.
func NewCSV(path string) *CSV {
	return &CSV{path: path}
}

// Files returns the CSV files the source reads, sorted by name.
func (s *CSV) Files() ([]string, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", s.path, err)
	}
	if !info.IsDir() {
		return []string{s.path}, nil
	}

	matches, err := filepath.Glob(filepath.Join(s.path, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("list csv files: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

// Records reads up to limit records. A limit <= 0 reads everything.
func (s *CSV) Records(ctx context.Context, limit int) ([]artwork.Record, error) {
	files, err := s.Files()
	if err != nil {
		return nil, err
	}

	var records []artwork.Record
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parsed, err := parseFile(path)
		if err != nil {
			return nil, err
		}
		records = append(records, parsed...)
		if limit > 0 && len(records) >= limit {
			return records[:limit], nil
		}
	}
	return records, nil
}

func parseFile(path string) ([]artwork.Record, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	records, err := ParseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return records, nil
}

var _ artwork.Source = (*CSV)(nil)
