package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type batchEvent struct {
	file    string
	results []LeadResult
}

func newTestWatcher(t *testing.T, dir string) (*Watcher, chan batchEvent) {
	t.Helper()
	p := New(stubSearch{}, stubFetcher{}, &routeReasoning{}, Options{Concurrency: 2}, nil)
	w, err := NewWatcher(p, dir, nil)
	require.NoError(t, err)
	w.settle = 50 * time.Millisecond

	events := make(chan batchEvent, 4)
	w.SetBatchHandler(func(file string, results []LeadResult) {
		events <- batchEvent{file: file, results: results}
	})
	return w, events
}

func waitBatch(t *testing.T, events chan batchEvent) batchEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for drop file to be processed")
		return batchEvent{}
	}
}

func TestWatcherProcessesDropFile(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	w, events := newTestWatcher(t, dir)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	path := filepath.Join(dir, "batch.jsonl")
	data := `{"username":"alpha","url":"https://github.com/alpha"}
{"username":"bravo","url":"https://github.com/bravo"}
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	ev := waitBatch(t, events)
	assert.Equal(t, path, ev.file)
	require.Len(t, ev.results, 2)
	assert.Equal(t, "alpha", ev.results[0].Lead.Username)
	assert.Equal(t, "bravo", ev.results[1].Lead.Username)
	for _, res := range ev.results {
		assert.NoError(t, res.Err)
		require.NotNil(t, res.Verdict)
	}

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "processed file should leave the drop folder")
	_, err = os.Stat(filepath.Join(dir, doneDirName, "batch.jsonl"))
	assert.NoError(t, err, "processed file should land in done/")
}

func TestWatcherPicksUpPreexistingFiles(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "early.jsonl")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"username":"alpha","url":"https://github.com/alpha"}`+"\n"), 0o644))

	w, events := newTestWatcher(t, dir)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	ev := waitBatch(t, events)
	assert.Equal(t, path, ev.file)
	require.Len(t, ev.results, 1)
}

func TestWatcherIgnoresOtherExtensions(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	w, events := newTestWatcher(t, dir)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not leads"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "real.jsonl"),
		[]byte(`{"username":"alpha","url":"https://github.com/alpha"}`+"\n"), 0o644))

	ev := waitBatch(t, events)
	assert.Equal(t, filepath.Join(dir, "real.jsonl"), ev.file)

	_, err := os.Stat(filepath.Join(dir, "notes.txt"))
	assert.NoError(t, err, "non-jsonl files stay put")
}

func TestWatcherMovesUnreadableFileAside(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	w, events := newTestWatcher(t, dir)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	bad := filepath.Join(dir, "bad.jsonl")
	require.NoError(t, os.WriteFile(bad, []byte("{not json\n"), 0o644))

	// No batch callback for a bad file; it is still moved so the folder
	// does not wedge on it.
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, doneDirName, "bad.jsonl"))
		return err == nil
	}, 10*time.Second, 20*time.Millisecond)

	select {
	case ev := <-events:
		t.Fatalf("unexpected batch callback for %s", ev.file)
	default:
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	w, _ := newTestWatcher(t, dir)
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}
