package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// doneDirName is where processed drop files land, under the watched dir.
const doneDirName = "done"

// Watcher drains a drop folder: every *.jsonl file that lands in the watched
// directory is parsed as one lead per line and run through the pipeline, then
// moved to done/. Files are debounced so a file still being written is not
// picked up mid-copy.
type Watcher struct {
	mu       sync.Mutex
	pipeline *Pipeline
	dir      string
	doneDir  string
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	pending  map[string]time.Time
	settle   time.Duration
	onBatch  func(file string, results []LeadResult)
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

func NewWatcher(p *Pipeline, dir string, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		pipeline: p,
		dir:      dir,
		doneDir:  filepath.Join(dir, doneDirName),
		logger:   logger,
		watcher:  fw,
		pending:  make(map[string]time.Time),
		settle:   500 * time.Millisecond,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// SetBatchHandler registers a callback invoked after each drop file is
// processed, with the file path and per-lead results.
func (w *Watcher) SetBatchHandler(h func(file string, results []LeadResult)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onBatch = h
}

// Start begins watching. Files already sitting in the directory are queued
// immediately. Non-blocking; the event loop runs until Stop or ctx cancel.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create watch dir: %w", err)
	}
	if err := os.MkdirAll(w.doneDir, 0o755); err != nil {
		return fmt.Errorf("create done dir: %w", err)
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching drop folder", zap.String("dir", w.dir))

	// Pick up files dropped before we started.
	entries, err := os.ReadDir(w.dir)
	if err == nil {
		w.mu.Lock()
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
				continue
			}
			w.pending[filepath.Join(w.dir, e.Name())] = time.Now().Add(-w.settle)
		}
		w.mu.Unlock()
	}

	go w.run(ctx)
	return nil
}

// Stop shuts down the watcher and waits for the event loop to drain.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.logger.Warn("error closing watcher", zap.Error(err))
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))

		case <-ticker.C:
			w.processSettled(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".jsonl") {
		return
	}
	// Rename covers files moved into the directory; chmod is noise.
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	if _, err := os.Stat(event.Name); err != nil {
		return
	}
	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processSettled(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.settle {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		w.processFile(ctx, path)
	}
}

func (w *Watcher) processFile(ctx context.Context, path string) {
	leads, err := ReadLeads(path)
	if err != nil {
		// Move the bad file aside too, or it sits in the drop folder forever.
		w.logger.Error("unreadable drop file", zap.String("file", path), zap.Error(err))
		w.moveToDone(path)
		return
	}
	w.logger.Info("processing drop file",
		zap.String("file", path),
		zap.Int("leads", len(leads)))

	results := w.pipeline.ProcessBatch(ctx, leads)
	w.moveToDone(path)

	w.mu.Lock()
	h := w.onBatch
	w.mu.Unlock()
	if h != nil {
		h(path, results)
	}
}

func (w *Watcher) moveToDone(path string) {
	dest := filepath.Join(w.doneDir, filepath.Base(path))
	if _, err := os.Stat(dest); err == nil {
		dest = fmt.Sprintf("%s.%d", dest, time.Now().UnixNano())
	}
	if err := os.Rename(path, dest); err != nil {
		w.logger.Warn("could not move drop file",
			zap.String("file", path),
			zap.Error(err))
	}
}
