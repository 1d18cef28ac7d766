package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helixml/artsearch/domain/artwork"
)

// ErrMissingNGADatabase indicates the NGA source was selected without a
// connection string.
var ErrMissingNGADatabase = errors.New("nga source requires a database url")

const ngaQuery = `select
    o.objectid::text,
    o.accessionnum,
    o.title,
    o.displaydate,
    o.medium,
    o.attribution,
    l.description,
    pi.iiifurl,
    pi.iiifthumburl,
    ot_keyword.terms,
    ot_place.terms,
    ot_school.terms,
    ot_style.terms,
    ot_technique.terms,
    ot_theme.terms
from objects o
    left join locations l on o.locationid = l.locationid
    left join published_images pi on o.objectid = pi.depictstmsobjectid
    left join (select objectid, termtype, string_agg(term::text, ', ') as terms from objects_terms group by objectid, termtype) ot_keyword
        on o.objectid = ot_keyword.objectid and ot_keyword.termtype = 'Keyword'
    left join (select objectid, termtype, string_agg(term::text, ', ') as terms from objects_terms group by objectid, termtype) ot_place
        on o.objectid = ot_place.objectid and ot_place.termtype = 'Place Executed'
    left join (select objectid, termtype, string_agg(term::text, ', ') as terms from objects_terms group by objectid, termtype) ot_school
        on o.objectid = ot_school.objectid and ot_school.termtype = 'School'
    left join (select objectid, termtype, string_agg(term::text, ', ') as terms from objects_terms group by objectid, termtype) ot_style
        on o.objectid = ot_style.objectid and ot_style.termtype = 'Style'
    left join (select objectid, termtype, string_agg(term::text, ', ') as terms from objects_terms group by objectid, termtype) ot_technique
        on o.objectid = ot_technique.objectid and ot_technique.termtype = 'Technique'
    left join (select objectid, termtype, string_agg(term::text, ', ') as terms from objects_terms group by objectid, termtype) ot_theme
        on o.objectid = ot_theme.objectid and ot_theme.termtype = 'Theme'
where pi.iiifurl <> ''`

// Querier runs a query. *pgxpool.Pool satisfies it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// NGA reads records from the National Gallery of Art open-data database.
type NGA struct {
	db Querier
}

// NewNGA creates an NGA source over an existing pool or connection.
func NewNGA(db Querier) *NGA {
	return &NGA{db: db}
}

// ConnectNGA opens a connection pool to the open-data database.
func ConnectNGA(ctx context.Context, url string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, ErrMissingNGADatabase
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect nga database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping nga database: %w", err)
	}
	return pool, nil
}

// ngaRow holds one result row; NULL columns scan as nil.
type ngaRow struct {
	objectID, accessionNum, title, displayDate, medium, attribution *string
	location, iiifURL, iiifThumbURL                                 *string
	keywords, places, schools, styles, techniques, themes           *string
}

func (r *ngaRow) targets() []any {
	return []any{
		&r.objectID, &r.accessionNum, &r.title, &r.displayDate, &r.medium, &r.attribution,
		&r.location, &r.iiifURL, &r.iiifThumbURL,
		&r.keywords, &r.places, &r.schools, &r.styles, &r.techniques, &r.themes,
	}
}

// record converts the row. The thumbnail IIIF URL is preferred as the image
// reference because the embedding service limits image size.
func (r *ngaRow) record() artwork.Record {
	image := str(r.iiifThumbURL)
	if image == "" {
		image = str(r.iiifURL)
	}
	return artwork.NewRecord(str(r.objectID), image,
		artwork.WithAccessionNum(str(r.accessionNum)),
		artwork.WithTitle(str(r.title)),
		artwork.WithDisplayDate(str(r.displayDate)),
		artwork.WithMedium(str(r.medium)),
		artwork.WithAttribution(str(r.attribution)),
		artwork.WithLocation(str(r.location)),
		artwork.WithMetadata("keywords", str(r.keywords)),
		artwork.WithMetadata("places", str(r.places)),
		artwork.WithMetadata("schools", str(r.schools)),
		artwork.WithMetadata("styles", str(r.styles)),
		artwork.WithMetadata("techniques", str(r.techniques)),
		artwork.WithMetadata("themes", str(r.themes)),
	)
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ngaStatement returns the query and its arguments for limit.
func ngaStatement(limit int) (string, []any) {
	if limit > 0 {
		return ngaQuery + "\nlimit $1", []any{limit}
	}
	return ngaQuery, nil
}

// Records reads up to limit records. A limit <= 0 reads everything.
func (s *NGA) Records(ctx context.Context, limit int) ([]artwork.Record, error) {
	query, args := ngaStatement(limit)
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query nga records: %w", err)
	}
	defer rows.Close()

	var records []artwork.Record
	for rows.Next() {
		var row ngaRow
		if err := rows.Scan(row.targets()...); err != nil {
			return nil, fmt.Errorf("scan nga record: %w", err)
		}
		records = append(records, row.record())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read nga records: %w", err)
	}
	return records, nil
}

var _ artwork.Source = (*NGA)(nil)
