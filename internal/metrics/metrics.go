// Package metrics exposes Prometheus instrumentation for the report driver.
//
// A nil *Driver is valid and records nothing, so packages can take one as an
// optional dependency without guarding every call site.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reportctl"

// Stream outcomes used as the "outcome" label of reportctl_streams_finished_total.
const (
	OutcomeDone      = "done"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// Driver groups the collectors recorded by the generation session, the
// tracker and the materializer.
type Driver struct {
	streamsStarted      prometheus.Counter
	streamsFinished     *prometheus.CounterVec
	frames              *prometheus.CounterVec
	decodeErrors        prometheus.Counter
	materializations    *prometheus.CounterVec
	materializeDuration prometheus.Histogram
	transitions         *prometheus.CounterVec
}

// New registers the driver collectors with reg.
//
// Parameters:
//   - reg: Registerer to attach the collectors to (prometheus.DefaultRegisterer when nil)
//
// Returns:
//   - *Driver: The registered collectors
func New(reg prometheus.Registerer) *Driver {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Driver{
		streamsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_started_total",
			Help:      "Generation streams that connected successfully",
		}),
		streamsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_finished_total",
			Help:      "Generation streams that ended, grouped by outcome",
		}, []string{"outcome"}),
		frames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Decoded SSE frames grouped by kind",
		}, []string{"kind"}),
		decodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_decode_errors_total",
			Help:      "Malformed SSE frames that were dropped",
		}),
		materializations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "materializations_total",
			Help:      "Result table loads grouped by outcome",
		}, []string{"outcome"}),
		materializeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "materialization_duration_seconds",
			Help:      "Duration of result fetch and parse",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Report status transitions grouped by target status",
		}, []string{"to"}),
	}
}

// StreamStarted records a connected generation stream.
func (d *Driver) StreamStarted() {
	if d == nil {
		return
	}
	d.streamsStarted.Inc()
}

// StreamFinished records the end of a generation stream.
func (d *Driver) StreamFinished(outcome string) {
	if d == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	d.streamsFinished.WithLabelValues(outcome).Inc()
}

// FrameDecoded records a decoded frame of the given kind.
func (d *Driver) FrameDecoded(kind string) {
	if d == nil {
		return
	}
	d.frames.WithLabelValues(kind).Inc()
}

// DecodeFailed records a dropped malformed frame.
func (d *Driver) DecodeFailed() {
	if d == nil {
		return
	}
	d.decodeErrors.Inc()
}

// ObserveMaterialization records the duration and outcome of a result load.
func (d *Driver) ObserveMaterialization(success bool, duration time.Duration) {
	if d == nil {
		return
	}
	d.materializeDuration.Observe(duration.Seconds())
	if success {
		d.materializations.WithLabelValues("success").Inc()
	} else {
		d.materializations.WithLabelValues("failed").Inc()
	}
}

// Transition records a report status change.
func (d *Driver) Transition(to string) {
	if d == nil {
		return
	}
	d.transitions.WithLabelValues(to).Inc()
}

// Handler returns the exposition handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
//
// Parameters:
//   - ctx: Context whose cancellation shuts the server down
//   - addr: Listen address, e.g. ":9464"
//   - g: Gatherer to expose
//
// Returns:
//   - error: Any error other than a clean shutdown
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
