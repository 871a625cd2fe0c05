package report

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportdash/reportctl/internal/api"
	"github.com/reportdash/reportctl/internal/logger"
	"github.com/reportdash/reportctl/internal/sse"
	"github.com/reportdash/reportctl/internal/status"
)

const testDelay = 10 * time.Millisecond

type fakeBackend struct {
	mu       sync.Mutex
	report   api.Report
	err      error
	rerunErr error
	gets     atomic.Int32
	reruns   []string
}

func (b *fakeBackend) GetReport(ctx context.Context, reportID string) (*api.Report, error) {
	b.gets.Add(1)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	r := b.report
	r.ID = reportID
	return &r, nil
}

func (b *fakeBackend) RerunReport(ctx context.Context, reportID, prompt string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reruns = append(b.reruns, prompt)
	if b.rerunErr != nil {
		return b.rerunErr
	}
	b.report.Status = "in_progress"
	return nil
}

func (b *fakeBackend) setStatus(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.Status = s
}

// fakeStreamer records stream starts; tests drive the callbacks directly.
type fakeStreamer struct {
	mu       sync.Mutex
	starts   []sse.Callbacks
	startErr error
}

func (s *fakeStreamer) Start(ctx context.Context, reportID string, cb sse.Callbacks) (*sse.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts = append(s.starts, cb)
	if s.startErr != nil {
		return nil, s.startErr
	}
	return nil, nil
}

func (s *fakeStreamer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.starts)
}

func (s *fakeStreamer) stream(i int) sse.Callbacks {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts[i]
}

type fakeResults struct {
	table    *ResultTable
	err      error
	loads    atomic.Int32
	forgets  atomic.Int32
	loadGate chan struct{}
}

func (r *fakeResults) Load(ctx context.Context, reportID string) (*ResultTable, error) {
	r.loads.Add(1)
	if r.loadGate != nil {
		<-r.loadGate
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.table, nil
}

func (r *fakeResults) Forget(reportID string) {
	r.forgets.Add(1)
}

type harness struct {
	backend *fakeBackend
	streams *fakeStreamer
	results *fakeResults
	tracker *Tracker
}

func newHarness(t *testing.T, reportStatus string, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		backend: &fakeBackend{report: api.Report{Name: "Top customers", Prompt: "top 10 customers", Status: reportStatus}},
		streams: &fakeStreamer{},
		results: &fakeResults{table: &ResultTable{Header: []string{"Name"}, Rows: []Row{{"Name": "foo"}}}},
	}
	opts = append([]Option{WithLogger(logger.Discard()), WithStartDelay(testDelay)}, opts...)
	h.tracker = NewTracker("r1", Deps{Backend: h.backend, Streams: h.streams, Results: h.results}, opts...)
	t.Cleanup(h.tracker.Detach)
	return h
}

func (h *harness) waitStarts(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.streams.count() >= n }, time.Second, time.Millisecond)
}

func waitReady(t *testing.T, tr *Tracker) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := tr.Wait(ctx)
	require.NoError(t, err)
	return snap
}

func progress(name, data string) sse.Event {
	return sse.Event{Kind: sse.KindProgress, Name: name, Data: data}
}

var done = sse.Event{Kind: sse.KindDone, Name: sse.DoneEvent}

func TestTrackerInProgressStreamsToCompletion(t *testing.T) {
	h := newHarness(t, "in_progress")

	require.NoError(t, h.tracker.Attach(context.Background()))
	snap := h.tracker.Snapshot()
	assert.Equal(t, status.StatusInProgress, snap.Status)
	assert.Equal(t, DetailGenerating, snap.Detail)
	assert.Equal(t, "Top customers", snap.Name)
	assert.True(t, snap.Busy)

	h.waitStarts(t, 1)
	cb := h.streams.stream(0)

	cb.OnEvent(progress("current_type", `"schema_analysis"`))
	snap = h.tracker.Snapshot()
	assert.Equal(t, "Generating report (schema_analysis)", snap.Detail)
	assert.Equal(t, status.StatusInProgress, snap.Status)
	assert.True(t, snap.Busy)

	cb.OnEvent(progress("response_completed", `{"sql_query":"SELECT 1","thought_process":"..."}`))
	snap = h.tracker.Snapshot()
	assert.Equal(t, "SELECT 1", snap.Query)
	assert.Equal(t, DetailQueryReady, snap.Detail)

	cb.OnEvent(done)
	snap = waitReady(t, h.tracker)
	assert.Equal(t, status.StatusComplete, snap.Status)
	assert.Equal(t, DetailGenerated, snap.Detail)
	assert.False(t, snap.Busy)
	assert.Equal(t, []string{"Name"}, snap.Table.Header)
	assert.Equal(t, int32(1), h.results.loads.Load())
	assert.Equal(t, int32(2), h.backend.gets.Load(), "metadata is re-fetched once after done")
}

func TestTrackerDoneIsIdempotent(t *testing.T) {
	h := newHarness(t, "in_progress")
	require.NoError(t, h.tracker.Attach(context.Background()))
	h.waitStarts(t, 1)

	cb := h.streams.stream(0)
	cb.OnEvent(done)
	cb.OnEvent(done)
	waitReady(t, h.tracker)
	version := h.tracker.Snapshot().Version

	cb.OnEvent(done)
	cb.OnEvent(progress("current_type", `"late"`))
	time.Sleep(2 * testDelay)

	assert.Equal(t, int32(1), h.results.loads.Load())
	assert.Equal(t, version, h.tracker.Snapshot().Version)
}

func TestTrackerProgressDetail(t *testing.T) {
	tests := []struct {
		name  string
		event sse.Event
		want  string
	}{
		{"json string payload", progress("current_type", `"sql_generation"`), "Generating report (sql_generation)"},
		{"plain payload", progress("step", "joining tables"), "Generating report (joining tables)"},
		{"empty payload", progress("heartbeat", ""), "Generating report (heartbeat)"},
		{"structured payload", progress("stats", `{"rows":3}`), "Generating report (stats)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "in_progress")
			require.NoError(t, h.tracker.Attach(context.Background()))
			h.waitStarts(t, 1)

			h.streams.stream(0).OnEvent(tt.event)
			assert.Equal(t, tt.want, h.tracker.Snapshot().Detail)
		})
	}
}

func TestTrackerStartDelayCoalesces(t *testing.T) {
	h := newHarness(t, "pending", WithStartDelay(50*time.Millisecond))

	require.NoError(t, h.tracker.Attach(context.Background()))
	require.NoError(t, h.tracker.Refresh(context.Background()))
	require.NoError(t, h.tracker.Refresh(context.Background()))

	assert.Zero(t, h.streams.count(), "nothing starts before the delay")
	h.waitStarts(t, 1)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, h.streams.count())

	// A refresh while streaming keeps the active stream.
	require.NoError(t, h.tracker.Refresh(context.Background()))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, h.streams.count())
}

func TestTrackerCompleteMaterializesDirectly(t *testing.T) {
	h := newHarness(t, "complete")

	require.NoError(t, h.tracker.Attach(context.Background()))
	snap := waitReady(t, h.tracker)

	assert.Equal(t, status.StatusComplete, snap.Status)
	assert.NotNil(t, snap.Table)
	assert.Zero(t, h.streams.count())
	assert.Equal(t, int32(1), h.backend.gets.Load())
}

func TestTrackerLegacyStatuses(t *testing.T) {
	h := newHarness(t, "completed")
	require.NoError(t, h.tracker.Attach(context.Background()))
	waitReady(t, h.tracker)

	h = newHarness(t, "running")
	require.NoError(t, h.tracker.Attach(context.Background()))
	h.waitStarts(t, 1)
}

func TestTrackerErrorStates(t *testing.T) {
	t.Run("unknown status", func(t *testing.T) {
		h := newHarness(t, "archived")
		err := h.tracker.Attach(context.Background())

		var unknown *UnknownStatusError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "archived", unknown.Status)

		snap := h.tracker.Snapshot()
		assert.Equal(t, status.StatusError, snap.Status)
		assert.Equal(t, DetailFailed, snap.Detail)
		assert.ErrorAs(t, snap.LastError, &unknown)
	})

	t.Run("backend error status", func(t *testing.T) {
		h := newHarness(t, "error")
		err := h.tracker.Attach(context.Background())
		assert.ErrorIs(t, err, ErrGenerationFailed)
		assert.Equal(t, status.StatusError, h.tracker.Snapshot().Status)
	})

	t.Run("metadata failure", func(t *testing.T) {
		h := newHarness(t, "in_progress")
		h.backend.err = &api.APIError{StatusCode: 404, Message: "Not Found"}
		err := h.tracker.Attach(context.Background())
		assert.True(t, api.IsNotFound(err))
		assert.Equal(t, status.StatusError, h.tracker.Snapshot().Status)
	})

	t.Run("start failure", func(t *testing.T) {
		h := newHarness(t, "in_progress")
		h.streams.startErr = &sse.ConnectionError{ReportID: "r1", StatusCode: 502}
		require.NoError(t, h.tracker.Attach(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		snap, err := h.tracker.Wait(ctx)

		var connErr *sse.ConnectionError
		require.ErrorAs(t, err, &connErr)
		assert.Equal(t, status.StatusError, snap.Status)
		assert.False(t, snap.Busy)
	})

	t.Run("stream failure", func(t *testing.T) {
		h := newHarness(t, "in_progress")
		require.NoError(t, h.tracker.Attach(context.Background()))
		h.waitStarts(t, 1)

		streamErr := &sse.ConnectionError{ReportID: "r1", Err: sse.ErrPrematureClose}
		h.streams.stream(0).OnError(streamErr)

		snap := h.tracker.Snapshot()
		assert.Equal(t, status.StatusError, snap.Status)
		assert.ErrorIs(t, snap.LastError, sse.ErrPrematureClose)
		assert.Equal(t, 1, h.streams.count(), "failures are not retried automatically")
	})

	t.Run("materialization failure", func(t *testing.T) {
		h := newHarness(t, "complete")
		h.results.err = &MaterializationError{ReportID: "r1", Err: errors.New("boom")}
		require.NoError(t, h.tracker.Attach(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		snap, err := h.tracker.Wait(ctx)

		var mErr *MaterializationError
		require.ErrorAs(t, err, &mErr)
		assert.Equal(t, status.StatusError, snap.Status)
		assert.Nil(t, snap.Table)
	})
}

func TestTrackerRetry(t *testing.T) {
	h := newHarness(t, "in_progress")
	require.NoError(t, h.tracker.Attach(context.Background()))
	h.waitStarts(t, 1)

	old := h.streams.stream(0)
	old.OnError(&sse.ConnectionError{ReportID: "r1", Err: sse.ErrStalled})
	require.Equal(t, status.StatusError, h.tracker.Snapshot().Status)

	require.NoError(t, h.tracker.Retry(context.Background()))
	assert.Equal(t, []string{"top 10 customers"}, h.backend.reruns)
	assert.Equal(t, int32(1), h.results.forgets.Load())

	snap := h.tracker.Snapshot()
	assert.Equal(t, status.StatusInProgress, snap.Status)
	assert.Nil(t, snap.LastError)
	assert.True(t, snap.Busy)

	h.waitStarts(t, 2)

	// Callbacks of the abandoned stream are dropped.
	old.OnEvent(done)
	assert.Equal(t, status.StatusInProgress, h.tracker.Snapshot().Status)

	h.streams.stream(1).OnEvent(done)
	snap = waitReady(t, h.tracker)
	assert.Equal(t, status.StatusComplete, snap.Status)
}

func TestTrackerRetryFailure(t *testing.T) {
	h := newHarness(t, "error")
	_ = h.tracker.Attach(context.Background())

	h.backend.rerunErr = &api.APIError{StatusCode: 500, Message: "Internal Server Error"}
	err := h.tracker.Retry(context.Background())
	require.Error(t, err)

	snap := h.tracker.Snapshot()
	assert.Equal(t, status.StatusError, snap.Status)
	time.Sleep(3 * testDelay)
	assert.Zero(t, h.streams.count())
}

func TestTrackerLifecycleErrors(t *testing.T) {
	h := newHarness(t, "in_progress")
	assert.ErrorIs(t, h.tracker.Retry(context.Background()), ErrNotAttached)
	assert.ErrorIs(t, h.tracker.Refresh(context.Background()), ErrNotAttached)

	h.tracker.Detach()
	h.tracker.Detach()
	assert.ErrorIs(t, h.tracker.Attach(context.Background()), ErrDetached)
	assert.ErrorIs(t, h.tracker.Retry(context.Background()), ErrDetached)
	assert.ErrorIs(t, h.tracker.Refresh(context.Background()), ErrDetached)
}

func TestTrackerDetachBeforeStart(t *testing.T) {
	h := newHarness(t, "in_progress", WithStartDelay(30*time.Millisecond))
	require.NoError(t, h.tracker.Attach(context.Background()))

	h.tracker.Detach()
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, h.streams.count())
}

func TestTrackerDetachDropsLaterCallbacks(t *testing.T) {
	h := newHarness(t, "in_progress")
	require.NoError(t, h.tracker.Attach(context.Background()))
	h.waitStarts(t, 1)

	before := h.tracker.Snapshot()
	h.tracker.Detach()

	cb := h.streams.stream(0)
	cb.OnEvent(progress("current_type", `"late"`))
	cb.OnEvent(done)
	cb.OnError(errors.New("late failure"))
	time.Sleep(3 * testDelay)

	assert.Equal(t, before, h.tracker.Snapshot())
	assert.Zero(t, h.results.loads.Load())

	_, err := h.tracker.Wait(context.Background())
	assert.ErrorIs(t, err, ErrDetached)
}

func TestTrackerDetachDuringMaterialization(t *testing.T) {
	h := newHarness(t, "complete")
	h.results.loadGate = make(chan struct{})
	require.NoError(t, h.tracker.Attach(context.Background()))
	require.Eventually(t, func() bool { return h.results.loads.Load() == 1 }, time.Second, time.Millisecond)

	before := h.tracker.Snapshot()
	h.tracker.Detach()
	close(h.results.loadGate)
	time.Sleep(3 * testDelay)

	after := h.tracker.Snapshot()
	assert.Equal(t, before, after)
	assert.Nil(t, after.Table)
}

func TestTrackerWaitHonorsContext(t *testing.T) {
	h := newHarness(t, "in_progress")
	require.NoError(t, h.tracker.Attach(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	snap, err := h.tracker.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, status.StatusInProgress, snap.Status)
}

func TestTrackerOnChange(t *testing.T) {
	var (
		mu       sync.Mutex
		versions []uint64
		statuses []status.ReportStatus
	)
	h := newHarness(t, "in_progress", WithOnChange(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		versions = append(versions, s.Version)
		statuses = append(statuses, s.Status)
	}))

	require.NoError(t, h.tracker.Attach(context.Background()))
	h.waitStarts(t, 1)
	h.streams.stream(0).OnEvent(done)
	final := waitReady(t, h.tracker)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(versions) > 0 && versions[len(versions)-1] == final.Version
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(versions); i++ {
		assert.Greater(t, versions[i], versions[i-1], "listener sees increasing versions")
	}
	assert.Contains(t, statuses, status.StatusInProgress)
	assert.Equal(t, status.StatusComplete, statuses[len(statuses)-1])
}
