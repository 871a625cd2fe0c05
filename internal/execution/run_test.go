package execution

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportdash/reportctl/internal/config"
	"github.com/reportdash/reportctl/internal/devserver"
	"github.com/reportdash/reportctl/internal/logger"
	"github.com/reportdash/reportctl/internal/report"
)

func newTestStack(t *testing.T, opts devserver.Options) (*Stack, *devserver.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	opts.Logger = logger.Discard()
	backend := devserver.New(opts)
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)

	zero := config.Duration(0)
	cfg := &config.Config{BaseURL: srv.URL, StartDelay: &zero}
	config.ApplyDefaults(cfg)

	stack, err := NewStack(cfg, WithLogger(logger.Discard()))
	require.NoError(t, err)
	t.Cleanup(stack.Close)
	return stack, backend
}

func TestRun(t *testing.T) {
	t.Run("Should follow a pending report to its results", func(t *testing.T) {
		stack, backend := newTestStack(t, devserver.Options{Frames: 2})
		id := backend.Seed(devserver.Report{Name: "Events", Prompt: "events by type"})

		var mu sync.Mutex
		var seen []report.Snapshot
		result, err := Run(context.Background(), stack, RunParams{
			ReportID: id,
			OnChange: func(s report.Snapshot) {
				mu.Lock()
				seen = append(seen, s)
				mu.Unlock()
			},
		})
		require.NoError(t, err)

		assert.True(t, result.Success)
		assert.Equal(t, "complete", result.Status)
		assert.Equal(t, "Events", result.Name)
		assert.Contains(t, result.Query, "SELECT event")
		assert.Equal(t, []string{"event", "count"}, result.Header)
		assert.Equal(t, 3, result.RowCount)
		assert.Equal(t, []string{"signup", "42"}, result.Rows[0])
		assert.Empty(t, result.ErrorMessage)

		mu.Lock()
		defer mu.Unlock()
		require.NotEmpty(t, seen)
		for i := 1; i < len(seen); i++ {
			assert.Greater(t, seen[i].Version, seen[i-1].Version)
		}

		assert.Eventually(t, func() bool {
			_, active := stack.Session.Active(id)
			return !active
		}, 2*time.Second, 10*time.Millisecond)
		n, err := testutil.GatherAndCount(stack.Registry, "reportctl_streams_started_total")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("Should limit rows but report the total", func(t *testing.T) {
		stack, backend := newTestStack(t, devserver.Options{})
		id := backend.Seed(devserver.Report{Prompt: "p", Status: "complete"})

		result, err := Run(context.Background(), stack, RunParams{ReportID: id, RowLimit: 1})
		require.NoError(t, err)
		assert.Len(t, result.Rows, 1)
		assert.Equal(t, 3, result.RowCount)
	})

	t.Run("Should report a failed generation", func(t *testing.T) {
		stack, backend := newTestStack(t, devserver.Options{Frames: 1})
		id := backend.Seed(devserver.Report{Prompt: "p", FailGeneration: true})

		result, err := Run(context.Background(), stack, RunParams{ReportID: id})
		require.Error(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, "error", result.Status)
		assert.NotEmpty(t, result.ErrorMessage)
	})

	t.Run("Should re-run a failed report", func(t *testing.T) {
		stack, backend := newTestStack(t, devserver.Options{Frames: 1})
		id := backend.Seed(devserver.Report{Prompt: "p", Status: "error", FailGeneration: true})

		result, err := Run(context.Background(), stack, RunParams{ReportID: id})
		require.ErrorIs(t, err, report.ErrGenerationFailed)
		assert.False(t, result.Success)

		result, err = Run(context.Background(), stack, RunParams{ReportID: id, Retry: true})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, 3, result.RowCount)
	})

	t.Run("Should give up after the timeout", func(t *testing.T) {
		stack, backend := newTestStack(t, devserver.Options{FrameDelay: time.Hour})
		id := backend.Seed(devserver.Report{Prompt: "p"})

		result, err := Run(context.Background(), stack, RunParams{ReportID: id, Timeout: 100 * time.Millisecond})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "did not finish")
		assert.Equal(t, "in_progress", result.Status)

		// Detach cancelled the stream.
		require.Eventually(t, func() bool {
			_, active := stack.Session.Active(id)
			return !active
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("Should fail for an unknown report", func(t *testing.T) {
		stack, _ := newTestStack(t, devserver.Options{})
		result, err := Run(context.Background(), stack, RunParams{ReportID: "9b0f2a52-6c1d-4e8a-b3f7-5d2c8e4a1f00"})
		require.Error(t, err)
		assert.False(t, result.Success)
		assert.Contains(t, result.ErrorMessage, "report not found")
	})
}

func TestStatus(t *testing.T) {
	stack, backend := newTestStack(t, devserver.Options{})
	id := backend.Seed(devserver.Report{Name: "Legacy", Prompt: "p", Status: "completed"})

	st, err := Status(context.Background(), stack, id)
	require.NoError(t, err)
	assert.Equal(t, "complete", st.Status)
	assert.Equal(t, "completed", st.RawStatus)
	assert.True(t, st.Terminal)
	assert.Equal(t, ReportURL(stack.Client.BaseURL(), id), st.ReportURL)
}

func TestResultsAndCreate(t *testing.T) {
	stack, backend := newTestStack(t, devserver.Options{})

	id, err := Create(context.Background(), stack, "", "count events")
	require.NoError(t, err)
	r, ok := backend.Get(id)
	require.True(t, ok)
	assert.Equal(t, "count events", r.Name)

	_, err = Create(context.Background(), stack, "x", "")
	require.Error(t, err)

	done := backend.Seed(devserver.Report{Prompt: "p", Status: "complete", Results: "a,b\n1,2\n"})
	table, err := Results(context.Background(), stack, done)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, table.Header)
	assert.Equal(t, 1, table.Len())
}

func TestReportURL(t *testing.T) {
	assert.Equal(t, "http://localhost:6173/dynamic-reports/abc", ReportURL("http://localhost:6173/", "abc"))
}
