package report

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/romdo/go-debounce"
	"github.com/tidwall/gjson"

	"github.com/reportdash/reportctl/internal/api"
	"github.com/reportdash/reportctl/internal/metrics"
	"github.com/reportdash/reportctl/internal/sse"
	"github.com/reportdash/reportctl/internal/status"
)

// Status details shown next to the report status.
const (
	DetailLoading    = "Loading report results..."
	DetailGenerating = "The report is being generated."
	DetailGenerated  = "The report has been generated successfully."
	DetailFailed     = "The report could not be generated."
	DetailQueryReady = "The report query has been written."
)

// Backend is the report metadata API used by a Tracker.
type Backend interface {
	GetReport(ctx context.Context, reportID string) (*api.Report, error)
	RerunReport(ctx context.Context, reportID, prompt string) error
}

// Streamer opens generation streams. *sse.Session implements it.
type Streamer interface {
	Start(ctx context.Context, reportID string, cb sse.Callbacks) (*sse.Handle, error)
}

// Results materializes completed reports. *Materializer implements it.
type Results interface {
	Load(ctx context.Context, reportID string) (*ResultTable, error)
	Forget(reportID string)
}

// Deps are the collaborators of a Tracker.
type Deps struct {
	Backend Backend
	Streams Streamer
	Results Results
}

// Snapshot is a copy of a tracker's state.
type Snapshot struct {
	ID     string
	Name   string
	Prompt string
	Query  string
	Status status.ReportStatus

	// Detail is a human-readable description of the current step.
	Detail string

	// LastError is set when Status is StatusError.
	LastError error

	// Table is the materialized result, nil until loaded.
	Table *ResultTable

	// Busy is true while generation or result loading is in flight.
	Busy bool

	// Version increases with every change.
	Version uint64
}

// Ready reports whether the report finished with results loaded.
func (s Snapshot) Ready() bool {
	return s.Status == status.StatusComplete && s.Table != nil && !s.Busy
}

// Tracker drives one report from its loaded status to materialized results.
//
// Every asynchronous step carries the generation it was started in. Retry,
// Detach and each new stream advance the generation, so callbacks and loads
// belonging to an older one are dropped without touching the state.
type Tracker struct {
	id      string
	deps    Deps
	logger  *log.Logger
	metrics *metrics.Driver
	delay   time.Duration
	notify  func(Snapshot)

	mu           sync.Mutex
	state        Snapshot
	gen          uint64
	completedGen uint64
	loadSeq      uint64
	streaming    bool
	handle       *sse.Handle
	attached     bool
	detached     bool
	ctx          context.Context
	cancel       context.CancelFunc
	schedule     func()
	unschedule   func()
	changed      chan struct{}

	notifyMu sync.Mutex
	notified uint64
}

// NewTracker creates a tracker for reportID. Nothing happens until Attach.
//
// Parameters:
//   - reportID: The report to follow
//   - deps: Backend, stream session and materializer
//   - opts: WithStartDelay, WithOnChange, WithLogger, WithMetrics
//
// Returns:
//   - *Tracker: A detached-until-attached tracker
func NewTracker(reportID string, deps Deps, opts ...Option) *Tracker {
	o := buildOptions(opts)
	t := &Tracker{
		id:      reportID,
		deps:    deps,
		logger:  o.logger.With("report_id", reportID),
		metrics: o.metrics,
		delay:   o.startDelay,
		notify:  o.onChange,
		state:   Snapshot{ID: reportID, Status: status.StatusPending},
		changed: make(chan struct{}),
	}
	t.schedule, t.unschedule = debounce.New(o.startDelay, t.startStream)
	return t
}

// Attach loads the report metadata and follows the status it finds: an
// in-progress report gets a generation stream after the start delay, a
// complete one has its results materialized.
//
// The tracker keeps the values of ctx but not its cancellation; background
// work runs until Detach.
//
// Parameters:
//   - ctx: Context for the metadata request
//
// Returns:
//   - error: ErrDetached, or the metadata load failure (also recorded in the snapshot)
func (t *Tracker) Attach(ctx context.Context) error {
	t.mu.Lock()
	if t.detached {
		t.mu.Unlock()
		return ErrDetached
	}
	if !t.attached {
		t.attached = true
		t.ctx, t.cancel = context.WithCancel(context.WithoutCancel(ctx))
	}
	t.mu.Unlock()
	return t.load(ctx)
}

// Refresh re-fetches the report metadata and follows it like Attach does.
// An active generation stream is kept.
func (t *Tracker) Refresh(ctx context.Context) error {
	t.mu.Lock()
	err := t.usableLocked()
	t.mu.Unlock()
	if err != nil {
		return err
	}
	return t.load(ctx)
}

// Retry re-runs generation: the report is put back in progress on the
// backend and a new stream is opened after the start delay. Any previous
// stream and result are discarded.
//
// Parameters:
//   - ctx: Context for the re-run request
//
// Returns:
//   - error: ErrNotAttached, ErrDetached, or the re-run request failure
func (t *Tracker) Retry(ctx context.Context) error {
	t.mu.Lock()
	if err := t.usableLocked(); err != nil {
		t.mu.Unlock()
		return err
	}
	t.gen++
	t.loadSeq++
	gen := t.gen
	prev := t.dropStreamLocked()
	prompt := t.state.Prompt
	t.setStatusLocked(status.StatusInProgress)
	t.state.LastError = nil
	t.state.Table = nil
	t.state.Query = ""
	t.state.Busy = true
	t.state.Detail = DetailGenerating
	snap := t.changedLocked()
	t.mu.Unlock()
	t.publish(snap)

	t.unschedule()
	if prev != nil {
		prev.Cancel()
	}
	t.deps.Results.Forget(t.id)

	t.logger.Info("Re-running report generation")
	err := t.deps.Backend.RerunReport(ctx, t.id, prompt)

	t.mu.Lock()
	if t.detached {
		t.mu.Unlock()
		return ErrDetached
	}
	if gen != t.gen {
		t.mu.Unlock()
		return nil
	}
	if err != nil {
		snap = t.failLocked(err)
		t.mu.Unlock()
		t.publish(snap)
		return err
	}
	t.mu.Unlock()

	t.schedule()
	return nil
}

// Detach stops following the report. Pending starts, the active stream and
// in-flight loads are abandoned, and the snapshot never changes again.
// Detach is idempotent.
func (t *Tracker) Detach() {
	t.mu.Lock()
	if t.detached {
		t.mu.Unlock()
		return
	}
	t.detached = true
	t.gen++
	t.loadSeq++
	prev := t.dropStreamLocked()
	cancel := t.cancel
	close(t.changed)
	t.changed = make(chan struct{})
	t.mu.Unlock()

	t.unschedule()
	if prev != nil {
		prev.Cancel()
	}
	if cancel != nil {
		cancel()
	}
	t.logger.Debug("Detached report tracker")
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Wait blocks until the report is complete with its results loaded, fails,
// or ctx is done.
//
// Returns:
//   - Snapshot: The state at the time Wait returned
//   - error: nil when ready, LastError on failure, ErrDetached, or ctx.Err()
func (t *Tracker) Wait(ctx context.Context) (Snapshot, error) {
	for {
		t.mu.Lock()
		snap := t.state
		ch := t.changed
		detached := t.detached
		t.mu.Unlock()

		switch {
		case snap.Ready():
			return snap, nil
		case snap.Status == status.StatusError:
			return snap, snap.LastError
		case detached:
			return snap, ErrDetached
		}

		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-ch:
		}
	}
}

// load fetches metadata and branches on the status.
func (t *Tracker) load(ctx context.Context) error {
	t.mu.Lock()
	t.loadSeq++
	seq := t.loadSeq
	t.mu.Unlock()

	report, err := t.deps.Backend.GetReport(ctx, t.id)

	t.mu.Lock()
	if t.detached {
		t.mu.Unlock()
		return ErrDetached
	}
	if seq != t.loadSeq {
		// A later load or a retry superseded this one.
		t.mu.Unlock()
		return nil
	}
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			t.mu.Unlock()
			return err
		}
		if t.streaming {
			// The stream is still the better source of truth.
			t.mu.Unlock()
			t.logger.Warn("Failed to refresh report metadata", "error", err)
			return err
		}
		snap := t.failLocked(err)
		t.mu.Unlock()
		t.publish(snap)
		return err
	}

	t.applyReportLocked(report)
	st, ok := status.Parse(report.Status)
	if !ok {
		err := &UnknownStatusError{Status: report.Status}
		snap := t.failLocked(err)
		t.mu.Unlock()
		t.publish(snap)
		return err
	}

	var (
		prev        *sse.Handle
		schedule    bool
		materialize uint64
	)
	switch st {
	case status.StatusPending, status.StatusInProgress:
		if !t.streaming {
			t.setStatusLocked(status.StatusInProgress)
			t.state.Busy = true
			t.state.Detail = DetailGenerating
			t.state.LastError = nil
			schedule = true
		}
	case status.StatusComplete:
		t.gen++
		t.completedGen = t.gen
		materialize = t.gen
		prev = t.dropStreamLocked()
		t.setStatusLocked(status.StatusComplete)
		t.state.Busy = true
		t.state.Detail = DetailLoading
		t.state.LastError = nil
	case status.StatusError:
		prev = t.dropStreamLocked()
		t.gen++
		err = ErrGenerationFailed
	}
	var snap Snapshot
	if err != nil {
		snap = t.failLocked(err)
	} else {
		snap = t.changedLocked()
	}
	t.mu.Unlock()
	t.publish(snap)

	if prev != nil {
		prev.Cancel()
	}
	if schedule {
		t.logger.Debug("Scheduling generation stream", "delay", t.delay)
		t.schedule()
	}
	if materialize != 0 {
		go t.materialize(materialize)
	}
	return err
}

// startStream runs when the start delay elapses.
func (t *Tracker) startStream() {
	t.mu.Lock()
	if t.detached || t.streaming || t.state.Status != status.StatusInProgress {
		t.mu.Unlock()
		return
	}
	t.gen++
	gen := t.gen
	t.streaming = true
	ctx := t.ctx
	t.mu.Unlock()

	t.logger.Debug("Opening generation stream")
	h, err := t.deps.Streams.Start(ctx, t.id, sse.Callbacks{
		OnEvent: func(ev sse.Event) { t.onEvent(gen, ev) },
		OnError: func(err error) { t.onStreamError(gen, err) },
	})

	t.mu.Lock()
	if t.detached || gen != t.gen {
		t.mu.Unlock()
		if h != nil {
			h.Cancel()
		}
		return
	}
	if err != nil {
		t.streaming = false
		snap := t.failLocked(err)
		t.mu.Unlock()
		t.publish(snap)
		return
	}
	if t.streaming {
		t.handle = h
	}
	t.mu.Unlock()
}

func (t *Tracker) onEvent(gen uint64, ev sse.Event) {
	t.mu.Lock()
	if t.detached || gen != t.gen || t.completedGen == gen {
		t.mu.Unlock()
		return
	}

	switch ev.Kind {
	case sse.KindProgress:
		t.applyProgressLocked(ev)
		snap := t.changedLocked()
		t.mu.Unlock()
		t.publish(snap)

	case sse.KindDone:
		t.completedGen = gen
		t.streaming = false
		t.handle = nil
		t.setStatusLocked(status.StatusComplete)
		t.state.Detail = DetailGenerated
		t.state.Busy = true
		snap := t.changedLocked()
		t.mu.Unlock()
		t.publish(snap)

		t.logger.Info("Report generation finished")
		// The reader goroutine holds the handle's dispatch lock; loading
		// there would block Detach on network I/O.
		go t.finish(gen)

	default:
		t.mu.Unlock()
	}
}

func (t *Tracker) onStreamError(gen uint64, err error) {
	t.mu.Lock()
	if t.detached || gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.streaming = false
	t.handle = nil
	snap := t.failLocked(err)
	t.mu.Unlock()
	t.publish(snap)
}

// finish refreshes metadata after a done event, then loads the results.
func (t *Tracker) finish(gen uint64) {
	report, err := t.deps.Backend.GetReport(t.ctx, t.id)
	t.mu.Lock()
	if t.detached || gen != t.gen {
		t.mu.Unlock()
		return
	}
	if err != nil {
		t.mu.Unlock()
		t.logger.Warn("Failed to refresh report metadata after generation", "error", err)
	} else {
		t.applyReportLocked(report)
		snap := t.changedLocked()
		t.mu.Unlock()
		t.publish(snap)
	}
	t.materialize(gen)
}

func (t *Tracker) materialize(gen uint64) {
	table, err := t.deps.Results.Load(t.ctx, t.id)

	t.mu.Lock()
	if t.detached || gen != t.gen {
		t.mu.Unlock()
		return
	}
	var snap Snapshot
	if err != nil {
		snap = t.failLocked(err)
	} else {
		t.state.Table = table
		t.state.Busy = false
		t.state.Detail = DetailGenerated
		snap = t.changedLocked()
	}
	t.mu.Unlock()
	t.publish(snap)
}

func (t *Tracker) usableLocked() error {
	if t.detached {
		return ErrDetached
	}
	if !t.attached {
		return ErrNotAttached
	}
	return nil
}

// dropStreamLocked forgets the active stream and returns its handle for the
// caller to cancel after unlocking.
func (t *Tracker) dropStreamLocked() *sse.Handle {
	h := t.handle
	t.handle = nil
	t.streaming = false
	return h
}

// applyReportLocked copies metadata fields. Status is handled by the caller.
func (t *Tracker) applyReportLocked(r *api.Report) {
	if r.Name != "" {
		t.state.Name = r.Name
	}
	if r.Prompt != "" {
		t.state.Prompt = r.Prompt
	}
	if r.Query != "" {
		t.state.Query = r.Query
	}
}

func (t *Tracker) applyProgressLocked(ev sse.Event) {
	if q := gjson.Get(ev.Data, "sql_query").String(); q != "" {
		t.state.Query = q
		t.state.Detail = DetailQueryReady
		return
	}
	if text := payloadText(ev.Data); text != "" {
		t.state.Detail = "Generating report (" + text + ")"
		return
	}
	t.state.Detail = "Generating report (" + ev.Name + ")"
}

// payloadText returns a JSON string payload unquoted and plain text as-is.
// Structured payloads yield "".
func payloadText(data string) string {
	if data == "" {
		return ""
	}
	if !gjson.Valid(data) {
		return data
	}
	if r := gjson.Parse(data); r.Type == gjson.String {
		return r.String()
	}
	return ""
}

func (t *Tracker) setStatusLocked(s status.ReportStatus) {
	if t.state.Status == s {
		return
	}
	t.state.Status = s
	t.metrics.Transition(string(s))
}

func (t *Tracker) failLocked(err error) Snapshot {
	if errors.Is(err, context.Canceled) {
		t.logger.Debug("Report step cancelled", "error", err)
	} else {
		t.logger.Error("Report failed", "error", err)
	}
	t.setStatusLocked(status.StatusError)
	t.state.LastError = err
	t.state.Busy = false
	t.state.Detail = DetailFailed
	return t.changedLocked()
}

// changedLocked bumps the version, wakes waiters and returns the new state.
func (t *Tracker) changedLocked() Snapshot {
	t.state.Version++
	close(t.changed)
	t.changed = make(chan struct{})
	return t.state
}

// publish hands snap to the listener unless a newer snapshot was already
// delivered.
func (t *Tracker) publish(snap Snapshot) {
	if t.notify == nil {
		return
	}
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()
	if snap.Version <= t.notified {
		return
	}
	t.notified = snap.Version
	t.notify(snap)
}
