package trace

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestRecorderWritesScopedJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs", "trace.jsonl")
	rec, err := NewRecorder(path)
	require.NoError(t, err)
	defer rec.Close()

	run := rec.WithRun("run-1", "acme")
	run.RunStarted("research acme robotics")
	run.SearchIssued("acme robotics funding", 4, nil)
	run.PageFetched("https://acme.example/about", 9500, nil)
	run.PageFetched("https://down.example", 0, errors.New("connection refused"))
	run.VerdictIssued("strong_fit", "ICP match on segment and size", 2)

	events := readEvents(t, path)
	require.Len(t, events, 5)

	for _, ev := range events {
		assert.Equal(t, "run-1", ev.RunID)
		assert.Equal(t, "acme", ev.Lead)
		assert.NotZero(t, ev.Timestamp)
	}
	assert.Equal(t, EventRunStarted, events[0].Type)
	assert.Equal(t, "acme robotics funding", events[1].Target)
	assert.True(t, events[2].Success)
	assert.False(t, events[3].Success)
	assert.Equal(t, "connection refused", events[3].Error)
	assert.Equal(t, "strong_fit", events[4].Fields["label"])
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *Recorder
	run := rec.WithRun("run-1", "acme")
	run.RunStarted("goal")
	run.SearchIssued("q", 0, nil)
	run.RunFinished("satisfied", 3, 7, nil)
	require.NoError(t, run.Close())
}

func TestRecorderConcurrentWritesStayLineSeparated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	rec, err := NewRecorder(path)
	require.NoError(t, err)
	defer rec.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			run := rec.WithRun("run-c", "lead")
			for j := 0; j < 25; j++ {
				run.PageFetched("https://example.com/page", n, nil)
			}
		}(i)
	}
	wg.Wait()

	events := readEvents(t, path)
	assert.Len(t, events, 200)
}
