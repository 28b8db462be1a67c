package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/seismic-sentinel/internal/domain"
	"github.com/couchcryptid/seismic-sentinel/internal/observability"
	"github.com/couchcryptid/seismic-sentinel/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockFetcher struct {
	lines []string
	err   error
	calls int
}

func (m *mockFetcher) Fetch(_ context.Context) ([]string, error) {
	m.calls++
	return m.lines, m.err
}

type memStore struct {
	records []domain.Record
	exists  bool
	saves   int
	saveErr error
}

func (m *memStore) Save(records []domain.Record) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.records = append([]domain.Record(nil), records...)
	m.exists = true
	return nil
}

func (m *memStore) Load() ([]domain.Record, error) {
	if !m.exists {
		return nil, fmt.Errorf("open dataset: %w", fs.ErrNotExist)
	}
	return append([]domain.Record(nil), m.records...), nil
}

type mockExporter struct {
	name    string
	err     error
	runIDs  []string
	batches [][]domain.Record
}

func (m *mockExporter) Name() string { return m.name }

func (m *mockExporter) Export(_ context.Context, runID string, records []domain.Record) error {
	m.runIDs = append(m.runIDs, runID)
	m.batches = append(m.batches, records)
	return m.err
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// row renders a bulletin line with the given ML magnitude token.
func row(ts, ml, location string) string {
	return fmt.Sprintf("%s  40.1234   28.5678        7.2      -.-  %s  -.-   %-50sİlksel", ts, ml, location)
}

func quietRows() []string {
	return []string{
		row("2024.01.15 10:00:00", "2.0", "MARMARA DENIZI"),
		row("2024.01.15 10:01:00", "2.0", "EGE DENIZI"),
		row("2024.01.15 10:02:00", "2.0", "AKDENIZ"),
		row("2024.01.15 10:03:00", "2.0", "SAPANCA (SAKARYA)"),
	}
}

func anomalousRows() []string {
	rows := make([]string, 0, 10)
	for i := range 9 {
		rows = append(rows, row(fmt.Sprintf("2024.01.15 10:%02d:00", i), "2.0", "MARMARA DENIZI"))
	}
	return append(rows, row("2024.01.15 11:00:00", "9.0", "YESILYURT (MALATYA)"))
}

// --- tests ---

func TestPipeline_RunOnce_HappyPath(t *testing.T) {
	lines := append(anomalousRows(), "", "Not: liste otomatik guncellenir")
	f := &mockFetcher{lines: lines}
	s := &memStore{}
	exp := &mockExporter{name: "json"}
	metrics := newTestMetrics()
	var out bytes.Buffer

	p := pipeline.New(f, s, &out, discardLogger(), metrics, exp)

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 12, res.Lines)
	assert.Equal(t, 10, res.Parsed)
	assert.Equal(t, 2, res.Rejected[domain.ReasonShortLine])
	assert.Equal(t, 10, res.Analysis.Count)
	require.Len(t, res.Analysis.Anomalies, 1)
	assert.Equal(t, "2024.01.15 11:00:00", res.Analysis.Anomalies[0].Timestamp)
	assert.NotEmpty(t, res.RunID)

	assert.Equal(t, 1, s.saves)
	require.Len(t, exp.batches, 1)
	assert.Len(t, exp.batches[0], 10, "exporters receive the full dataset")
	assert.Equal(t, res.RunID, exp.runIDs[0])

	assert.Contains(t, out.String(), "ALERT: 1 Anomalies Detected!")
	assert.Contains(t, out.String(), "YESILYURT (MALATYA)")

	assert.NoError(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("success")), 0)
	assert.InDelta(t, 10, testutil.ToFloat64(metrics.RecordsExported.WithLabelValues("json")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.AnomaliesDetected), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.LinesRejected.WithLabelValues("short_line")), 0)
}

func TestPipeline_RunOnce_NoAnomalies(t *testing.T) {
	f := &mockFetcher{lines: quietRows()}
	exp := &mockExporter{name: "json"}
	var out bytes.Buffer

	p := pipeline.New(f, &memStore{}, &out, discardLogger(), newTestMetrics(), exp)

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Empty(t, res.Analysis.Anomalies)
	assert.Equal(t, "No statistical anomalies found.\n", out.String())
	require.Len(t, exp.batches, 1)
	assert.Len(t, exp.batches[0], 4)
}

func TestPipeline_RunOnce_FetchFailureWithoutDataset(t *testing.T) {
	f := &mockFetcher{err: errors.New("connection refused")}
	s := &memStore{}
	exp := &mockExporter{name: "json"}
	metrics := newTestMetrics()
	var out bytes.Buffer

	p := pipeline.New(f, s, &out, discardLogger(), metrics, exp)

	_, err := p.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrDatasetMissing)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	assert.Zero(t, s.saves, "an empty fetch never creates a dataset")
	assert.Empty(t, exp.batches, "no export without a dataset")
	assert.Empty(t, out.String())
	assert.Error(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.FetchFailures), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("error")), 0)
}

func TestPipeline_RunOnce_EmptyFetchReusesPreviousDataset(t *testing.T) {
	previous, _ := domain.Build(quietRows())
	s := &memStore{records: previous, exists: true}
	f := &mockFetcher{err: errors.New("timeout")}
	exp := &mockExporter{name: "json"}

	p := pipeline.New(f, s, io.Discard, discardLogger(), newTestMetrics(), exp)

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Zero(t, res.Parsed)
	assert.Zero(t, s.saves)
	assert.Equal(t, 4, res.Analysis.Count)
	require.Len(t, exp.batches, 1)
	if diff := cmp.Diff(previous, exp.batches[0]); diff != "" {
		t.Errorf("exported dataset mismatch (-want +got):\n%s", diff)
	}
}

func TestPipeline_RunOnce_AllLinesRejectedKeepsDataset(t *testing.T) {
	previous, _ := domain.Build(anomalousRows())
	s := &memStore{records: previous, exists: true}
	f := &mockFetcher{lines: []string{"", "too short", row("2024.01.15 10:00:00", "x.y", "BOZUK")}}

	p := pipeline.New(f, s, io.Discard, discardLogger(), newTestMetrics())

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Rejected.Total())
	assert.Equal(t, 1, res.Rejected[domain.ReasonInvalidField])
	assert.Zero(t, s.saves)
	assert.Equal(t, 10, res.Analysis.Count)
}

func TestPipeline_RunOnce_CancelledFetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &mockFetcher{err: context.Canceled}
	s := &memStore{}
	metrics := newTestMetrics()

	p := pipeline.New(f, s, io.Discard, discardLogger(), metrics)

	_, err := p.RunOnce(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, testutil.ToFloat64(metrics.FetchFailures))
}

func TestPipeline_RunOnce_SaveError(t *testing.T) {
	s := &memStore{saveErr: errors.New("disk full")}
	exp := &mockExporter{name: "json"}

	p := pipeline.New(&mockFetcher{lines: quietRows()}, s, io.Discard, discardLogger(), newTestMetrics(), exp)

	_, err := p.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save dataset")
	assert.Empty(t, exp.batches)
}

func TestPipeline_RunOnce_ExportErrorRunsRemainingExporters(t *testing.T) {
	failing := &mockExporter{name: "kafka", err: errors.New("broker unavailable")}
	ok := &mockExporter{name: "json"}
	metrics := newTestMetrics()

	p := pipeline.New(&mockFetcher{lines: quietRows()}, &memStore{}, io.Discard, discardLogger(), metrics, failing, ok)

	_, err := p.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka export")

	assert.Len(t, ok.batches, 1)
	assert.Error(t, p.CheckReadiness(context.Background()))
	assert.Zero(t, testutil.ToFloat64(metrics.RecordsExported.WithLabelValues("kafka")))
	assert.InDelta(t, 4, testutil.ToFloat64(metrics.RecordsExported.WithLabelValues("json")), 0)
}

func TestPipeline_Collect_DoesNotAnalyze(t *testing.T) {
	s := &memStore{}
	exp := &mockExporter{name: "json"}
	var out bytes.Buffer

	p := pipeline.New(&mockFetcher{lines: anomalousRows()}, s, &out, discardLogger(), newTestMetrics(), exp)

	res, err := p.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 10, res.Parsed)
	assert.Equal(t, 1, s.saves)
	assert.Len(t, s.records, 10)
	assert.Empty(t, exp.batches)
	assert.Empty(t, out.String())
	assert.Zero(t, res.Analysis.Count)
}

func TestPipeline_AnalyzeStored_DoesNotFetch(t *testing.T) {
	stored, _ := domain.Build(anomalousRows())
	f := &mockFetcher{}
	exp := &mockExporter{name: "json"}

	p := pipeline.New(f, &memStore{records: stored, exists: true}, io.Discard, discardLogger(), newTestMetrics(), exp)

	res, err := p.AnalyzeStored(context.Background())
	require.NoError(t, err)

	assert.Zero(t, f.calls)
	assert.Len(t, res.Analysis.Anomalies, 1)
	require.Len(t, exp.batches, 1)
	assert.Len(t, exp.batches[0], 10)
}

func TestPipeline_AnalyzeStored_MissingDataset(t *testing.T) {
	p := pipeline.New(&mockFetcher{}, &memStore{}, io.Discard, discardLogger(), newTestMetrics())

	_, err := p.AnalyzeStored(context.Background())
	assert.ErrorIs(t, err, pipeline.ErrDatasetMissing)
}

func TestPipeline_RunOnce_DurationUsesClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := pipeline.New(&mockFetcher{lines: quietRows()}, &memStore{}, io.Discard, discardLogger(), newTestMetrics())
	p.SetClock(clock)

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), res.Duration)
}

func TestPipeline_RunOnce_FreshRunIDs(t *testing.T) {
	p := pipeline.New(&mockFetcher{lines: quietRows()}, &memStore{}, io.Discard, discardLogger(), newTestMetrics())

	first, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	second, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
}
