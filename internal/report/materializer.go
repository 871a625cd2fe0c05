package report

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/reportdash/reportctl/internal/metrics"
)

const tracerName = "github.com/reportdash/reportctl/internal/report"

// ResultFetcher returns the raw CSV payload of a completed report.
type ResultFetcher interface {
	GetResults(ctx context.Context, reportID string) (string, error)
}

// Materializer fetches and parses report results and keeps the latest table
// per report.
type Materializer struct {
	fetcher ResultFetcher
	cache   *lru.Cache[string, *ResultTable]
	group   singleflight.Group
	logger  *log.Logger
	metrics *metrics.Driver
	tracer  trace.Tracer
}

// NewMaterializer creates a materializer.
//
// Parameters:
//   - fetcher: Source of result payloads, usually *api.Client
//   - opts: WithCacheSize, WithLogger, WithMetrics, WithTracer
//
// Returns:
//   - *Materializer: The materializer
//   - error: An invalid cache size
func NewMaterializer(fetcher ResultFetcher, opts ...Option) (*Materializer, error) {
	o := buildOptions(opts)
	cache, err := lru.New[string, *ResultTable](o.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}
	return &Materializer{
		fetcher: fetcher,
		cache:   cache,
		logger:  o.logger,
		metrics: o.metrics,
		tracer:  o.tracerProvider().Tracer(tracerName),
	}, nil
}

// Load fetches and parses the results of reportID, replacing any table
// materialized before. Concurrent loads of the same report share one fetch.
//
// Parameters:
//   - ctx: Context for cancellation
//   - reportID: The completed report
//
// Returns:
//   - *ResultTable: The fresh table
//   - error: *MaterializationError on fetch or parse failure
func (m *Materializer) Load(ctx context.Context, reportID string) (*ResultTable, error) {
	v, err, shared := m.group.Do(reportID, func() (any, error) {
		return m.load(ctx, reportID)
	})
	if shared {
		m.logger.Debug("Shared in-flight result load", "report_id", reportID)
	}
	if err != nil {
		return nil, err
	}
	return v.(*ResultTable), nil
}

func (m *Materializer) load(ctx context.Context, reportID string) (*ResultTable, error) {
	start := time.Now()
	ctx, span := m.tracer.Start(ctx, "report.materialize",
		trace.WithAttributes(attribute.String("report.id", reportID)))
	defer span.End()

	fail := func(err error) (*ResultTable, error) {
		m.metrics.ObserveMaterialization(false, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.logger.Warn("Result materialization failed", "report_id", reportID, "error", err)
		return nil, &MaterializationError{ReportID: reportID, Err: err}
	}

	payload, err := m.fetcher.GetResults(ctx, reportID)
	if err != nil {
		return fail(fmt.Errorf("failed to fetch results: %w", err))
	}

	table, err := ParseTable(payload)
	if err != nil {
		return fail(fmt.Errorf("failed to parse results: %w", err))
	}

	m.cache.Add(reportID, table)
	m.metrics.ObserveMaterialization(true, time.Since(start))
	span.SetAttributes(
		attribute.Int("table.columns", len(table.Header)),
		attribute.Int("table.rows", len(table.Rows)),
	)
	m.logger.Debug("Materialized results", "report_id", reportID, "columns", len(table.Header), "rows", len(table.Rows))
	return table, nil
}

// Latest returns the last table materialized for reportID.
func (m *Materializer) Latest(reportID string) (*ResultTable, bool) {
	return m.cache.Get(reportID)
}

// Forget drops the cached table of reportID.
func (m *Materializer) Forget(reportID string) {
	m.cache.Remove(reportID)
	m.group.Forget(reportID)
}
