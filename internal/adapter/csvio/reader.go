// Package csvio reads biomass tables and writes canopy tables as CSV.
package csvio

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/couchcryptid/gedi-canopy-etl/internal/domain"
)

// ErrMissingBiomassColumn is returned when the input header has no biomass column.
var ErrMissingBiomassColumn = errors.New("csvio: input has no biomass column")

// Reader streams BiomassRecords from a CSV with a header row.
// It implements pipeline.BatchExtractor.
type Reader struct {
	csv    *csv.Reader
	closer io.Closer
	latIdx int
	lonIdx int
	bioIdx int
	line   int
	done   bool
}

// Open opens the CSV at path. A missing file yields an error matching
// os.ErrNotExist.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// NewReader reads the header from r. The latitude and longitude columns are
// optional and read as 0 when absent.
func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrMissingBiomassColumn
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	rd := &Reader{csv: cr, latIdx: -1, lonIdx: -1, bioIdx: -1, line: 1}
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		switch strings.TrimSpace(h) {
		case domain.ColLatitude:
			rd.latIdx = i
		case domain.ColLongitude:
			rd.lonIdx = i
		case domain.ColBiomass:
			rd.bioIdx = i
		}
	}
	if rd.bioIdx < 0 {
		return nil, ErrMissingBiomassColumn
	}
	return rd, nil
}

// ExtractBatch returns up to batchSize records. It returns io.EOF, with no
// records, once the input is exhausted.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.BiomassRecord, error) {
	if r.done {
		return nil, io.EOF
	}
	if batchSize <= 0 {
		batchSize = 1
	}

	batch := make([]domain.BiomassRecord, 0, batchSize)
	for len(batch) < batchSize {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		row, err := r.csv.Read()
		if errors.Is(err, io.EOF) {
			r.done = true
			break
		}
		if err != nil {
			return batch, fmt.Errorf("read row %d: %w", r.line+1, err)
		}
		r.line++
		rec := domain.BiomassRecord{Biomass: domain.ParseNumeric(cell(row, r.bioIdx))}
		rec.Latitude, rec.RawLatitude = coordinate(row, r.latIdx)
		rec.Longitude, rec.RawLongitude = coordinate(row, r.lonIdx)
		batch = append(batch, rec)
	}

	if len(batch) == 0 && r.done {
		return nil, io.EOF
	}
	return batch, nil
}

// Close closes the underlying file, if the Reader opened one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// coordinate returns 0 for an absent column. An unparsable cell yields NaN
// plus its trimmed text.
func coordinate(row []string, idx int) (float64, string) {
	if idx < 0 {
		return 0, ""
	}
	raw := strings.TrimSpace(cell(row, idx))
	v := domain.ParseNumeric(raw)
	if math.IsNaN(v) && !missingMarkers[raw] {
		return v, raw
	}
	return v, ""
}

// CoordinateCell returns the output cell for an input coordinate cell.
func CoordinateCell(raw string) string {
	v, text := coordinate([]string{raw}, 0)
	return coordinateCell(v, text)
}

// missingMarkers are cell values read as missing rather than as text.
var missingMarkers = map[string]bool{
	"": true, "NA": true, "N/A": true, "n/a": true, "#N/A": true, "<NA>": true,
	"NaN": true, "nan": true, "-NaN": true, "-nan": true,
	"NULL": true, "null": true, "None": true,
}
