// Package sse provides the Server-Sent Events client that follows report generation.
//
// This package splits a text/event-stream body into frames, decodes them and
// delivers them to per-report callbacks. It owns the rule that at most one
// generation stream is active per report.
package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/reportdash/reportctl/internal/metrics"
)

const tracerName = "github.com/reportdash/reportctl/internal/sse"

const readBufferSize = 32 * 1024

// Callbacks receive the events of one generation stream.
//
// Both are invoked from the stream's reader goroutine, one at a time and in
// stream order. They must not call Cancel on the handle that invoked them.
type Callbacks struct {
	// OnEvent receives progress and done events. Unknown frames are not delivered.
	OnEvent func(Event)

	// OnError receives at most one error, always a *ConnectionError. It is
	// never called for a caller-initiated cancel.
	OnError func(error)
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithStallTimeout aborts a stream that receives no bytes for d. Zero disables it.
func WithStallTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.stallTimeout = d }
}

// WithLogger sets the logger used for dropped frames and stream failures.
func WithLogger(l *log.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records stream and frame counters on m.
func WithMetrics(m *metrics.Driver) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// WithHeader adds a header to every stream request.
func WithHeader(key, value string) SessionOption {
	return func(s *Session) { s.headers.Add(key, value) }
}

// WithTracer sets the tracer provider used for stream spans.
func WithTracer(tp trace.TracerProvider) SessionOption {
	return func(s *Session) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// Session opens generation streams and tracks the active handle per report.
type Session struct {
	client       *http.Client
	urlFor       func(reportID string) string
	stallTimeout time.Duration
	headers      http.Header
	logger       *log.Logger
	metrics      *metrics.Driver
	tracer       trace.Tracer

	mu     sync.Mutex
	active map[string]*Handle
}

// NewSession creates a session.
//
// Parameters:
//   - httpClient: Client used for stream requests. It should have no overall timeout.
//   - urlFor: Builds the generation endpoint URL for a report ID
//   - opts: Optional configuration
//
// Returns:
//   - *Session: A new session with no active streams
func NewSession(httpClient *http.Client, urlFor func(reportID string) string, opts ...SessionOption) *Session {
	if httpClient == nil {
		// Use a client with no timeout for streaming connections
		httpClient = &http.Client{Timeout: 0}
	}
	s := &Session{
		client:  httpClient,
		urlFor:  urlFor,
		headers: make(http.Header),
		logger:  log.Default(),
		tracer:  otel.Tracer(tracerName),
		active:  make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle controls one generation stream.
type Handle struct {
	reportID string
	session  *Session
	cb       Callbacks
	cancel   context.CancelCauseFunc
	done     chan struct{}

	// dispatchMu is held while a callback runs; closed is checked under it.
	dispatchMu sync.Mutex
	closed     atomic.Bool
}

// ReportID returns the report this handle streams.
func (h *Handle) ReportID() string {
	return h.reportID
}

// Done is closed once the stream's reader goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Cancel aborts the stream. No callback starts after Cancel returns, even if
// chunks were already buffered. Cancel is idempotent and must not be called
// from inside one of the handle's own callbacks.
func (h *Handle) Cancel() {
	h.cancel(context.Canceled)
	h.closed.Store(true)

	// Waits for an in-flight callback to finish.
	h.dispatchMu.Lock()
	h.dispatchMu.Unlock()

	h.session.release(h)
}

// dispatch runs fn under the dispatch lock unless the handle is closed.
func (h *Handle) dispatch(fn func()) bool {
	h.dispatchMu.Lock()
	defer h.dispatchMu.Unlock()
	if h.closed.Load() {
		return false
	}
	fn()
	return true
}

// Start opens a generation stream for reportID.
//
// Any handle already active for reportID is cancelled first; the new handle
// replaces it in one step under the session lock. Start returns once the
// response headers have arrived; events are delivered afterwards from a
// reader goroutine.
//
// Parameters:
//   - ctx: Parent context of the stream. Cancelling it ends the stream silently.
//   - reportID: The report to generate
//   - cb: Event and error callbacks
//
// Returns:
//   - *Handle: The stream handle, also returned when the caller cancelled during connect
//   - error: *ConnectionError when the request fails, the status is not 2xx or there is no body
func (s *Session) Start(ctx context.Context, reportID string, cb Callbacks) (*Handle, error) {
	streamCtx, cancel := context.WithCancelCause(ctx)
	h := &Handle{
		reportID: reportID,
		session:  s,
		cb:       cb,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	prev := s.active[reportID]
	s.active[reportID] = h
	if prev != nil {
		prev.closed.Store(true)
	}
	s.mu.Unlock()
	if prev != nil {
		s.logger.Debug("Replacing active generation stream", "report_id", reportID)
		prev.Cancel()
	}

	spanCtx, span := s.tracer.Start(streamCtx, "sse.generation_stream",
		trace.WithAttributes(attribute.String("report.id", reportID)))

	resp, err := s.connect(spanCtx, reportID)
	if err != nil {
		defer close(h.done)
		if errors.Is(context.Cause(streamCtx), context.Canceled) {
			span.SetAttributes(attribute.String("stream.outcome", metrics.OutcomeCancelled))
			span.End()
			h.Cancel()
			s.metrics.StreamFinished(metrics.OutcomeCancelled)
			return h, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		h.Cancel()
		s.metrics.StreamFinished(metrics.OutcomeError)
		return nil, err
	}

	s.metrics.StreamStarted()
	s.logger.Debug("Generation stream connected", "report_id", reportID, "status", resp.StatusCode)
	go s.read(streamCtx, h, resp, span)
	return h, nil
}

// connect issues the streaming GET and validates the response.
func (s *Session) connect(ctx context.Context, reportID string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.urlFor(reportID), nil)
	if err != nil {
		return nil, &ConnectionError{ReportID: reportID, Err: fmt.Errorf("failed to create SSE request: %w", err)}
	}
	for k, vs := range s.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &ConnectionError{ReportID: reportID, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &ConnectionError{
			ReportID:   reportID,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response status %s", resp.Status),
		}
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, &ConnectionError{ReportID: reportID, StatusCode: resp.StatusCode, Err: errors.New("response has no body")}
	}
	return resp, nil
}

// read is the reader goroutine of one handle.
func (s *Session) read(ctx context.Context, h *Handle, resp *http.Response, span trace.Span) {
	defer close(h.done)
	defer resp.Body.Close()

	var stall *time.Timer
	if s.stallTimeout > 0 {
		stall = time.AfterFunc(s.stallTimeout, func() { h.cancel(ErrStalled) })
		defer stall.Stop()
	}

	outcome := s.readLoop(ctx, h, resp.Body, stall, span)
	h.Cancel()
	span.SetAttributes(attribute.String("stream.outcome", outcome))
	span.End()
	s.metrics.StreamFinished(outcome)
}

// readLoop feeds body through the splitter until done, failure or cancel,
// and returns the stream outcome.
func (s *Session) readLoop(ctx context.Context, h *Handle, body io.Reader, stall *time.Timer, span trace.Span) string {
	splitter := NewFrameSplitter()
	buf := make([]byte, readBufferSize)

	for {
		n, err := body.Read(buf)
		if n > 0 {
			if stall != nil {
				stall.Reset(s.stallTimeout)
			}
			for _, frame := range splitter.Feed(buf[:n]) {
				if h.closed.Load() {
					return metrics.OutcomeCancelled
				}
				if s.handleFrame(h, frame, span) {
					h.Cancel()
					return metrics.OutcomeDone
				}
			}
		}
		if err == nil {
			continue
		}

		if h.closed.Load() {
			return metrics.OutcomeCancelled
		}
		if ctx.Err() != nil {
			cause := context.Cause(ctx)
			if errors.Is(cause, context.Canceled) {
				return metrics.OutcomeCancelled
			}
			err = cause
		} else if errors.Is(err, io.EOF) {
			if frame, ok := splitter.Flush(); ok && s.handleFrame(h, frame, span) {
				h.Cancel()
				return metrics.OutcomeDone
			}
			err = ErrPrematureClose
		}

		s.fail(h, &ConnectionError{ReportID: h.reportID, Err: err}, span)
		return metrics.OutcomeError
	}
}

// handleFrame decodes and delivers one frame. It reports whether the frame
// was the done event.
func (s *Session) handleFrame(h *Handle, frame string, span trace.Span) bool {
	ev, err := Decode(frame)
	if err != nil {
		s.metrics.DecodeFailed()
		s.logger.Warn("Dropping malformed frame", "report_id", h.reportID, "error", err)
		return false
	}
	s.metrics.FrameDecoded(ev.Kind.String())
	if ev.Kind == KindUnknown {
		s.logger.Debug("Ignoring frame without event", "report_id", h.reportID)
		return false
	}

	span.AddEvent("sse.event", trace.WithAttributes(attribute.String("event.name", ev.Name)))
	h.dispatch(func() {
		if h.cb.OnEvent != nil {
			h.cb.OnEvent(ev)
		}
	})
	return ev.Kind == KindDone
}

func (s *Session) fail(h *Handle, err error, span trace.Span) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.logger.Warn("Generation stream failed", "report_id", h.reportID, "error", err)
	h.dispatch(func() {
		if h.cb.OnError != nil {
			h.cb.OnError(err)
		}
	})
	h.Cancel()
}

// release removes h from the registry if it is still the active handle.
func (s *Session) release(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[h.reportID] == h {
		delete(s.active, h.reportID)
	}
}

// Cancel aborts the active stream for reportID, if any.
func (s *Session) Cancel(reportID string) {
	s.mu.Lock()
	h := s.active[reportID]
	s.mu.Unlock()
	if h != nil {
		h.Cancel()
	}
}

// Active returns the live handle for reportID.
func (s *Session) Active(reportID string) (*Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.active[reportID]
	if !ok || h.closed.Load() {
		return nil, false
	}
	return h, true
}

// CancelAll aborts every active stream.
func (s *Session) CancelAll() {
	s.mu.Lock()
	handles := make([]*Handle, 0, len(s.active))
	for _, h := range s.active {
		handles = append(handles, h)
	}
	s.mu.Unlock()
	for _, h := range handles {
		h.Cancel()
	}
}
