package csvio

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/gedi-canopy-etl/internal/domain"
)

// Writer writes CanopyRecords with the fixed output header.
// It implements pipeline.BatchLoader.
type Writer struct {
	csv  *csv.Writer
	file *os.File
	path string
	rows int
}

// Create writes to a temporary file next to path. Close renames it to path;
// Discard removes it, leaving any existing file at path untouched.
func Create(path string) (*Writer, error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	// CreateTemp uses 0600; output keeps the usual 0644.
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	w, err := NewWriter(f)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	w.file = f
	w.path = path
	return w, nil
}

// NewWriter writes the header row to w.
func NewWriter(w io.Writer) (*Writer, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(domain.OutputColumns); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return &Writer{csv: cw}, nil
}

// LoadBatch appends records and flushes them.
func (w *Writer) LoadBatch(_ context.Context, records []domain.CanopyRecord) error {
	row := make([]string, len(domain.OutputColumns))
	for _, rec := range records {
		row[0] = coordinateCell(rec.Latitude, rec.RawLatitude)
		row[1] = coordinateCell(rec.Longitude, rec.RawLongitude)
		row[2] = FormatFloat(rec.Biomass)
		row[3] = FormatFloat(rec.CanopyHeight)
		row[4] = FormatFloat(rec.RH98)
		row[5] = FormatFloat(rec.RH75)
		row[6] = FormatFloat(rec.RH50)
		row[7] = FormatFloat(rec.RH25)
		if err := w.csv.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", w.rows+1, err)
		}
		w.rows++
	}
	w.csv.Flush()
	return w.csv.Error()
}

// Rows returns the number of data rows written.
func (w *Writer) Rows() int {
	return w.rows
}

// Close flushes buffered rows. A Writer from Create then moves its file into
// place; on any error the temporary file is removed instead.
func (w *Writer) Close() error {
	w.csv.Flush()
	err := w.csv.Error()
	if w.file == nil {
		return err
	}
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(w.file.Name(), w.path)
	}
	if err != nil {
		os.Remove(w.file.Name())
		return fmt.Errorf("commit %s: %w", w.path, err)
	}
	return nil
}

// Discard abandons the output. Nothing is written to the destination path.
func (w *Writer) Discard() error {
	if w.file == nil {
		return nil
	}
	w.file.Close()
	if err := os.Remove(w.file.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", w.file.Name(), err)
	}
	return nil
}

// coordinateCell writes back the original text of an unparsable coordinate.
func coordinateCell(v float64, raw string) string {
	if math.IsNaN(v) && raw != "" {
		return raw
	}
	return FormatFloat(v)
}

// FormatFloat renders v with six decimals, or an empty cell for NaN.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}
