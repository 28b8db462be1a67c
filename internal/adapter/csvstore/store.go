// Package csvstore persists the dataset as a flat CSV table between the
// fetch and analysis stages.
package csvstore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/couchcryptid/seismic-sentinel/internal/domain"
)

// ErrNotFound is returned by Load when no dataset has been persisted yet.
// It wraps fs.ErrNotExist.
var ErrNotFound = fmt.Errorf("dataset not found: %w", fs.ErrNotExist)

// Store reads and writes the dataset at a fixed path.
// It implements pipeline.DatasetStore.
type Store struct {
	path string
}

// New creates a Store backed by the CSV file at path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Save replaces the persisted dataset. The file is written to a temporary
// sibling and renamed so readers never see a partial table.
func (s *Store) Save(records []domain.Record) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".quakes-*.csv")
	if err != nil {
		return fmt.Errorf("create temp dataset: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after rename

	if err := write(tmp, records); err != nil {
		tmp.Close() //nolint:errcheck // already failing
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close() //nolint:errcheck // already failing
		return fmt.Errorf("chmod temp dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp dataset: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace dataset: %w", err)
	}
	return nil
}

// Load reads the persisted dataset in file order.
func (s *Store) Load() ([]domain.Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	records, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", s.path, err)
	}
	return records, nil
}

func write(w io.Writer, records []domain.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(domain.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.Timestamp,
			formatFloat(r.Latitude),
			formatFloat(r.Longitude),
			formatFloat(r.Depth),
			formatFloat(r.Magnitude),
			r.Location,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush dataset: %w", err)
	}
	return nil
}

func read(r io.Reader) ([]domain.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(domain.Columns)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []domain.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if !slices.Equal(header, domain.Columns) {
		return nil, fmt.Errorf("unexpected header %v", header)
	}

	records := []domain.Record{}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
}

func parseRow(row []string) (domain.Record, error) {
	var nums [4]float64
	for i, col := range row[1:5] {
		v, err := strconv.ParseFloat(col, 64)
		if err != nil {
			return domain.Record{}, fmt.Errorf("column %s: %w", domain.Columns[i+1], err)
		}
		nums[i] = v
	}
	return domain.Record{
		Timestamp: row[0],
		Latitude:  nums[0],
		Longitude: nums[1],
		Depth:     nums[2],
		Magnitude: nums[3],
		Location:  row[5],
	}, nil
}

// formatFloat renders the shortest representation that parses back to v.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
