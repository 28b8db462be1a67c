package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/seismic-sentinel/internal/domain"
	"github.com/couchcryptid/seismic-sentinel/internal/observability"
	"github.com/couchcryptid/seismic-sentinel/internal/report"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// ErrDatasetMissing means no persisted dataset exists at analysis time. The
// run ends without writing an export.
var ErrDatasetMissing = errors.New("persisted dataset missing")

// Fetcher returns the raw bulletin lines, header block already removed.
type Fetcher interface {
	Fetch(ctx context.Context) ([]string, error)
}

// DatasetStore persists the dataset between the fetch and analysis stages.
type DatasetStore interface {
	Save(records []domain.Record) error
	Load() ([]domain.Record, error)
}

// Exporter hands the full dataset to a downstream consumer.
type Exporter interface {
	Name() string
	Export(ctx context.Context, runID string, records []domain.Record) error
}

// Result summarizes one run.
type Result struct {
	RunID    string
	Lines    int
	Parsed   int
	Rejected domain.Rejections
	Analysis domain.Analysis
	Duration time.Duration
}

// Pipeline orchestrates fetch, parse, persist, analyze, report, and export.
// Runs are serialized; no state survives a run except the persisted files.
type Pipeline struct {
	fetcher   Fetcher
	store     DatasetStore
	exporters []Exporter
	report    io.Writer
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock

	mu    sync.Mutex
	ready atomic.Bool
}

// New creates a Pipeline. The report receives the operator summary of every
// analysis; exporters run in the given order.
func New(f Fetcher, s DatasetStore, reportOut io.Writer, logger *slog.Logger, metrics *observability.Metrics, exporters ...Exporter) *Pipeline {
	return &Pipeline{
		fetcher:   f,
		store:     s,
		exporters: exporters,
		report:    reportOut,
		logger:    logger,
		metrics:   metrics,
		clock:     clockwork.NewRealClock(),
	}
}

// SetClock swaps the time source used for run durations. Pass nil to reset.
func (p *Pipeline) SetClock(c clockwork.Clock) {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	p.clock = c
}

// CheckReadiness returns nil once a run has exported a dataset.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no dataset has been exported yet")
	}
	return nil
}

// RunOnce executes a complete run: collect then analyze.
func (p *Pipeline) RunOnce(ctx context.Context) (Result, error) {
	return p.run(ctx, "run", p.collect, p.analyze)
}

// Collect fetches the bulletin and persists the parsed dataset without
// analyzing it.
func (p *Pipeline) Collect(ctx context.Context) (Result, error) {
	return p.run(ctx, "collect", p.collect)
}

// AnalyzeStored analyzes, reports, and exports the persisted dataset without
// fetching.
func (p *Pipeline) AnalyzeStored(ctx context.Context) (Result, error) {
	return p.run(ctx, "analyze", p.analyze)
}

type stage func(ctx context.Context, logger *slog.Logger, res *Result) error

func (p *Pipeline) run(ctx context.Context, mode string, stages ...stage) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.clock.Now()
	res := Result{RunID: uuid.NewString(), Rejected: domain.Rejections{}}
	logger := p.logger.With("run_id", res.RunID, "mode", mode)
	logger.Info("run started")

	for _, st := range stages {
		if err := st(ctx, logger, &res); err != nil {
			res.Duration = p.clock.Since(start)
			p.metrics.RunsTotal.WithLabelValues("error").Inc()
			logger.Error("run failed", "error", err, "duration", res.Duration)
			return res, err
		}
	}

	res.Duration = p.clock.Since(start)
	p.metrics.RunsTotal.WithLabelValues("success").Inc()
	p.metrics.RunDuration.Observe(res.Duration.Seconds())
	logger.Info("run complete",
		"records", res.Analysis.Count,
		"anomalies", len(res.Analysis.Anomalies),
		"duration", res.Duration,
	)
	return res, nil
}

// collect fetches and parses the bulletin. A fetch failure is downgraded to
// an empty line set. The dataset is saved only when it has records, so an
// empty fetch leaves the previous dataset in place.
func (p *Pipeline) collect(ctx context.Context, logger *slog.Logger, res *Result) error {
	lines, err := p.fetcher.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("bulletin fetch failed, continuing with no lines", "error", err)
		p.metrics.FetchFailures.Inc()
		lines = nil
	}

	records, rejected := domain.Build(lines)
	res.Lines = len(lines)
	res.Parsed = len(records)
	res.Rejected = rejected

	p.metrics.LinesFetched.Add(float64(len(lines)))
	p.metrics.RecordsParsed.Add(float64(len(records)))
	for reason, n := range rejected {
		p.metrics.LinesRejected.WithLabelValues(string(reason)).Add(float64(n))
	}
	logger.Info("bulletin parsed", "lines", len(lines), "records", len(records), "rejected", rejected.Total())

	if len(records) == 0 {
		logger.Warn("no valid records in bulletin, keeping previous dataset")
		return nil
	}
	if err := p.store.Save(records); err != nil {
		return fmt.Errorf("save dataset: %w", err)
	}
	return nil
}

// analyze loads the persisted dataset, reports anomalies, and exports the
// full dataset. The anomaly subset never reaches the exporters.
func (p *Pipeline) analyze(ctx context.Context, logger *slog.Logger, res *Result) error {
	dataset, err := p.store.Load()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %w", ErrDatasetMissing, err)
		}
		return fmt.Errorf("load dataset: %w", err)
	}

	res.Analysis = domain.Analyze(dataset)
	p.metrics.DatasetRecords.Set(float64(res.Analysis.Count))
	p.metrics.AnomaliesDetected.Set(float64(len(res.Analysis.Anomalies)))
	logger.Info("dataset analyzed",
		"records", res.Analysis.Count,
		"mean_magnitude", res.Analysis.Mean,
		"stddev_magnitude", res.Analysis.StdDev,
		"anomalies", len(res.Analysis.Anomalies),
	)

	if err := report.Write(p.report, res.Analysis); err != nil {
		logger.Warn("write operator report failed", "error", err)
	}

	var errs []error
	for _, e := range p.exporters {
		if err := e.Export(ctx, res.RunID, dataset); err != nil {
			logger.Error("export failed", "exporter", e.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s export: %w", e.Name(), err))
			continue
		}
		p.metrics.RecordsExported.WithLabelValues(e.Name()).Add(float64(len(dataset)))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	p.ready.Store(true)
	return nil
}
