// Package execution provides the shared report-driving logic.
//
// This package wires the REST client, the generation session and the result
// materializer together. Both the CLI commands and the MCP server use it, so
// they follow reports the same way.
package execution

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/trace"

	"github.com/reportdash/reportctl/internal/api"
	"github.com/reportdash/reportctl/internal/config"
	"github.com/reportdash/reportctl/internal/metrics"
	"github.com/reportdash/reportctl/internal/report"
	"github.com/reportdash/reportctl/internal/sse"
)

// Stack holds the collaborators every tracker needs.
type Stack struct {
	Client   *api.Client
	Session  *sse.Session
	Results  *report.Materializer
	Metrics  *metrics.Driver
	Registry *prometheus.Registry

	cfg    *config.Config
	logger *log.Logger
	tracer trace.TracerProvider
}

// StackOption configures a Stack.
type StackOption func(*Stack)

// WithLogger sets the logger shared by every component.
func WithLogger(l *log.Logger) StackOption {
	return func(s *Stack) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracer sets the tracer provider for stream and materialization spans.
func WithTracer(tp trace.TracerProvider) StackOption {
	return func(s *Stack) { s.tracer = tp }
}

// NewStack builds the client, session and materializer from cfg.
//
// Parameters:
//   - cfg: Resolved configuration (see config.Resolve)
//   - opts: Optional logger and tracer
//
// Returns:
//   - *Stack: The wired components
//   - error: An invalid cache size
func NewStack(cfg *config.Config, opts ...StackOption) (*Stack, error) {
	s := &Stack{cfg: cfg, logger: log.Default()}
	for _, opt := range opts {
		opt(s)
	}

	s.Registry = prometheus.NewRegistry()
	s.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s.Metrics = metrics.New(s.Registry)

	s.Client = api.NewClientFromConfig(cfg, api.WithLogger(s.logger))

	sessionOpts := []sse.SessionOption{
		sse.WithLogger(s.logger),
		sse.WithMetrics(s.Metrics),
		sse.WithStallTimeout(cfg.StallTimeout.Std()),
		sse.WithTracer(s.tracer),
	}
	for key, values := range s.Client.AuthHeaders() {
		for _, v := range values {
			sessionOpts = append(sessionOpts, sse.WithHeader(key, v))
		}
	}
	s.Session = sse.NewSession(s.Client.StreamingHTTPClient(), s.Client.GenerateURL, sessionOpts...)

	results, err := report.NewMaterializer(s.Client,
		report.WithLogger(s.logger),
		report.WithMetrics(s.Metrics),
		report.WithTracer(s.tracer),
		report.WithCacheSize(cfg.CacheSize),
	)
	if err != nil {
		return nil, err
	}
	s.Results = results
	return s, nil
}

// Track creates a tracker for reportID. The caller attaches and detaches it.
//
// Parameters:
//   - reportID: The report to follow
//   - opts: Extra tracker options, typically report.WithOnChange
//
// Returns:
//   - *report.Tracker: A tracker sharing the stack's session and cache
func (s *Stack) Track(reportID string, opts ...report.Option) *report.Tracker {
	base := []report.Option{
		report.WithLogger(s.logger),
		report.WithMetrics(s.Metrics),
		report.WithStartDelay(config.EffectiveStartDelay(s.cfg)),
	}
	return report.NewTracker(reportID, report.Deps{
		Backend: s.Client,
		Streams: s.Session,
		Results: s.Results,
	}, append(base, opts...)...)
}

// ServeMetrics exposes the stack's registry on the configured address until
// ctx is cancelled. It returns immediately when no address is configured.
func (s *Stack) ServeMetrics(ctx context.Context) {
	addr := s.cfg.MetricsAddr
	if addr == "" {
		return
	}
	go func() {
		s.logger.Debug("Serving metrics", "addr", addr)
		if err := metrics.Serve(ctx, addr, s.Registry); err != nil {
			s.logger.Warn("Metrics server stopped", "addr", addr, "error", err)
		}
	}()
}

// Close cancels every active generation stream.
func (s *Stack) Close() {
	s.Session.CancelAll()
}

// ReportURL returns the dashboard page of a report.
func ReportURL(baseURL, reportID string) string {
	return strings.TrimRight(baseURL, "/") + "/dynamic-reports/" + reportID
}
