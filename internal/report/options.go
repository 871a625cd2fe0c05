// Package report drives a report through generation and materializes its results.
//
// A Tracker owns the status state machine of one report: it decides on
// attach whether to open a generation stream or load finished results, and
// follows the stream to completion. A Materializer turns the CSV payload of a
// completed report into a ResultTable.
package report

import (
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/reportdash/reportctl/internal/config"
	"github.com/reportdash/reportctl/internal/metrics"
)

// Option configures a Tracker or a Materializer. Options that do not apply
// to the value being built are ignored.
type Option func(*options)

type options struct {
	logger     *log.Logger
	metrics    *metrics.Driver
	tracer     trace.TracerProvider
	cacheSize  int
	startDelay time.Duration
	onChange   func(Snapshot)
}

func buildOptions(opts []Option) options {
	o := options{
		logger:     log.Default(),
		cacheSize:  config.DefaultCacheSize,
		startDelay: config.DefaultStartDelay,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) tracerProvider() trace.TracerProvider {
	if o.tracer != nil {
		return o.tracer
	}
	return otel.GetTracerProvider()
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records transitions and materializations on m.
func WithMetrics(m *metrics.Driver) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracer sets the tracer provider for materialization spans.
func WithTracer(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracer = tp }
}

// WithCacheSize bounds the number of tables a Materializer keeps.
func WithCacheSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.cacheSize = n
		}
	}
}

// WithStartDelay sets how long a Tracker waits before opening a stream.
// Repeated loads inside the window coalesce into one start.
func WithStartDelay(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.startDelay = d
		}
	}
}

// WithOnChange registers a listener called with a snapshot after every
// state change. It runs outside the tracker lock, one call at a time, and
// must not call back into the tracker.
func WithOnChange(fn func(Snapshot)) Option {
	return func(o *options) { o.onChange = fn }
}
