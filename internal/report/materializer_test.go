package report

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/reportdash/reportctl/internal/logger"
	"github.com/reportdash/reportctl/internal/metrics"
)

// fakeFetcher serves canned payloads per report.
type fakeFetcher struct {
	mu       sync.Mutex
	payloads map[string]string
	err      error
	calls    atomic.Int32
	gate     chan struct{}
}

func (f *fakeFetcher) GetResults(ctx context.Context, reportID string) (string, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.payloads[reportID], nil
}

func (f *fakeFetcher) set(reportID, payload string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads[reportID] = payload
}

func TestMaterializerLoad(t *testing.T) {
	f := &fakeFetcher{payloads: map[string]string{"r1": "Name,Value\nfoo,1\nbar,2\n"}}
	m, err := NewMaterializer(f, WithLogger(logger.Discard()))
	require.NoError(t, err)

	_, ok := m.Latest("r1")
	assert.False(t, ok)

	table, err := m.Load(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Value"}, table.Header)
	assert.Equal(t, 2, table.Len())

	latest, ok := m.Latest("r1")
	require.True(t, ok)
	assert.Same(t, table, latest)
}

func TestMaterializerReplacesTable(t *testing.T) {
	f := &fakeFetcher{payloads: map[string]string{"r1": "a\n1\n"}}
	m, err := NewMaterializer(f, WithLogger(logger.Discard()))
	require.NoError(t, err)

	first, err := m.Load(context.Background(), "r1")
	require.NoError(t, err)

	f.set("r1", "b,c\n2,3\n4,5\n")
	second, err := m.Load(context.Background(), "r1")
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, first.Header, "earlier tables are not mutated")
	assert.Equal(t, []string{"b", "c"}, second.Header)
	assert.Equal(t, 2, second.Len())

	latest, _ := m.Latest("r1")
	assert.Same(t, second, latest)
}

func TestMaterializerEmptyPayload(t *testing.T) {
	f := &fakeFetcher{payloads: map[string]string{"r1": ""}}
	m, err := NewMaterializer(f, WithLogger(logger.Discard()))
	require.NoError(t, err)

	table, err := m.Load(context.Background(), "r1")
	require.NoError(t, err)
	assert.Empty(t, table.Header)
	assert.Zero(t, table.Len())
}

func TestMaterializerErrors(t *testing.T) {
	t.Run("fetch failure", func(t *testing.T) {
		cause := errors.New("connection refused")
		reg := prometheus.NewRegistry()
		m, err := NewMaterializer(&fakeFetcher{err: cause},
			WithLogger(logger.Discard()), WithMetrics(metrics.New(reg)))
		require.NoError(t, err)

		_, err = m.Load(context.Background(), "r1")
		var mErr *MaterializationError
		require.ErrorAs(t, err, &mErr)
		assert.Equal(t, "r1", mErr.ReportID)
		assert.ErrorIs(t, err, cause)

		_, ok := m.Latest("r1")
		assert.False(t, ok)
	})

	t.Run("bare quotes are data", func(t *testing.T) {
		f := &fakeFetcher{payloads: map[string]string{"r1": "a\nx\"y\n"}}
		m, err := NewMaterializer(f, WithLogger(logger.Discard()))
		require.NoError(t, err)

		table, err := m.Load(context.Background(), "r1")
		require.NoError(t, err)
		assert.Equal(t, []Row{{"a": "x\"y"}}, table.Rows)
	})
}

func TestMaterializerCollapsesConcurrentLoads(t *testing.T) {
	f := &fakeFetcher{payloads: map[string]string{"r1": "a\n1\n"}, gate: make(chan struct{})}
	m, err := NewMaterializer(f, WithLogger(logger.Discard()))
	require.NoError(t, err)

	var wg sync.WaitGroup
	tables := make([]*ResultTable, 5)
	for i := range tables {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			table, err := m.Load(context.Background(), "r1")
			assert.NoError(t, err)
			tables[i] = table
		}(i)
	}

	require.Eventually(t, func() bool { return f.calls.Load() >= 1 }, time.Second, time.Millisecond)
	// Give the other loads time to join the in-flight call.
	time.Sleep(20 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.Equal(t, int32(1), f.calls.Load())
	for _, table := range tables {
		assert.Same(t, tables[0], table)
	}
}

func TestMaterializerCacheBoundAndForget(t *testing.T) {
	f := &fakeFetcher{payloads: map[string]string{"r1": "a\n1\n", "r2": "b\n2\n"}}
	m, err := NewMaterializer(f, WithLogger(logger.Discard()), WithCacheSize(1))
	require.NoError(t, err)

	_, err = m.Load(context.Background(), "r1")
	require.NoError(t, err)
	_, err = m.Load(context.Background(), "r2")
	require.NoError(t, err)

	_, ok := m.Latest("r1")
	assert.False(t, ok, "oldest table is evicted")
	_, ok = m.Latest("r2")
	assert.True(t, ok)

	m.Forget("r2")
	_, ok = m.Latest("r2")
	assert.False(t, ok)
}

func TestMaterializerRecordsSpanAndMetrics(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	reg := prometheus.NewRegistry()
	d := metrics.New(reg)

	f := &fakeFetcher{payloads: map[string]string{"r1": "a,b\n1,2\n"}}
	m, err := NewMaterializer(f, WithLogger(logger.Discard()), WithTracer(tp), WithMetrics(d))
	require.NoError(t, err)

	_, err = m.Load(context.Background(), "r1")
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "report.materialize", spans[0].Name())

	count, err := testutil.GatherAndCount(reg, "reportctl_materializations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
