package sinks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pagecrawl/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := progress.UUIDToBytes(uuid.New())
	now := time.Now()
	batch := []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageRunStart, Total: 3},
		{
			RunID:       runID,
			TS:          now.Add(time.Second),
			Stage:       progress.StageFetchDone,
			Site:        "example.com",
			URL:         "https://example.com/1",
			Bytes:       1024,
			StatusClass: progress.Status2xx,
			Dur:         200 * time.Millisecond,
			Total:       3,
		},
		{RunID: runID, TS: now, Stage: progress.StageSubPages, Count: 4, Total: 3},
		{RunID: runID, TS: now, Stage: progress.StageNextPage, Total: 3},
		{RunID: runID, TS: now, Stage: progress.StageItemDone, Cursor: 1, Total: 3},
		{RunID: runID, TS: now.Add(15 * time.Second), Stage: progress.StageRunDone, Cursor: 3, Total: 3, Dur: 15 * time.Second},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("success")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("error")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsActive))

	require.InDelta(t, 1.0,
		testutil.ToFloat64(sink.fetchRequests.WithLabelValues("example.com", string(progress.Status2xx))), 1e-9)
	require.InDelta(t, 1024.0, testutil.ToFloat64(sink.fetchBytes.WithLabelValues("example.com")), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.fetchDuration, "pagecrawl_fetch_duration_seconds"))

	require.Equal(t, 4.0, testutil.ToFloat64(sink.subPages))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.nextPages))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.itemsDone))
	require.Equal(t, 3.0, testutil.ToFloat64(sink.listCursor))
	require.Equal(t, 3.0, testutil.ToFloat64(sink.listTotal))
}

func TestPrometheusSinkTracksActiveRuns(t *testing.T) {
	t.Parallel()

	sink, err := NewPrometheusSink(prometheus.NewRegistry())
	require.NoError(t, err)

	runID := progress.UUIDToBytes(uuid.New())
	start := progress.Event{RunID: runID, TS: time.Now(), Stage: progress.StageRunStart}
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{start, start}))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsActive))

	cancelled := progress.Event{RunID: runID, TS: time.Now(), Stage: progress.StageRunCancelled}
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{cancelled, cancelled}))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsActive))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("cancelled")))
}

func TestPrometheusSinkRejectsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	runID := progress.UUIDToBytes(uuid.New())
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: time.Now(), Stage: progress.StageRunStart, Total: 2},
	}))

	path := filepath.Join(t.TempDir(), "pagecrawl.prom")
	require.NoError(t, WriteTextfile(path, reg))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "pagecrawl_runs_started_total 1")
	require.Contains(t, string(data), "pagecrawl_list_total 2")

	err = WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"), reg)
	require.Error(t, err)
}
