// Package jsonexport writes the dataset document consumed by the dashboard
// frontend.
package jsonexport

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/seismic-sentinel/internal/domain"
)

// Exporter writes the full dataset to a JSON file.
// It implements pipeline.Exporter.
type Exporter struct {
	path string
}

// New creates an Exporter for the document at path.
func New(path string) *Exporter {
	return &Exporter{path: path}
}

// Path returns the document path.
func (e *Exporter) Path() string { return e.path }

// Name identifies the exporter in logs.
func (e *Exporter) Name() string { return "json" }

// Export replaces the document with records, in order, as an array of
// objects keyed by the record columns. The run id is not part of the
// document.
func (e *Exporter) Export(_ context.Context, _ string, records []domain.Record) error {
	data, err := Encode(records)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(e.path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(e.path), ".quakes-*.json")
	if err != nil {
		return fmt.Errorf("create temp export: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // already failing
		return fmt.Errorf("write export: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close() //nolint:errcheck // already failing
		return fmt.Errorf("chmod temp export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp export: %w", err)
	}
	if err := os.Rename(tmp.Name(), e.path); err != nil {
		return fmt.Errorf("replace export: %w", err)
	}
	return nil
}

// Encode renders records as the export document, indented by four spaces.
// A nil slice is written as an empty array.
func Encode(records []domain.Record) ([]byte, error) {
	if records == nil {
		records = []domain.Record{}
	}
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return append(data, '\n'), nil
}

// Read loads an export document back into records.
func Read(path string) ([]domain.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []domain.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode export %s: %w", path, err)
	}
	return records, nil
}
