package database

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// PgVector is a float32 vector stored in a pgvector VECTOR column. It reads
// and writes the text form "[1,2,3]".
type PgVector []float32

// NewPgVector copies v into a PgVector.
func NewPgVector(v []float32) PgVector {
	out := make(PgVector, len(v))
	copy(out, v)
	return out
}

// Slice returns a copy of the vector values.
func (v PgVector) Slice() []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

// Scan implements sql.Scanner.
func (v *PgVector) Scan(value any) error {
	var raw string
	switch val := value.(type) {
	case nil:
		*v = nil
		return nil
	case string:
		raw = val
	case []byte:
		raw = string(val)
	default:
		return fmt.Errorf("cannot scan %T into PgVector", value)
	}

	raw = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(raw), "["), "]")
	if raw == "" {
		*v = PgVector{}
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make(PgVector, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return fmt.Errorf("parse element %d: %w", i, err)
		}
		out[i] = float32(f)
	}
	*v = out
	return nil
}

// Value implements driver.Valuer.
func (v PgVector) Value() (driver.Value, error) {
	return v.String(), nil
}

// String returns the pgvector literal.
func (v PgVector) String() string {
	var b strings.Builder
	b.Grow(len(v)*12 + 2)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
