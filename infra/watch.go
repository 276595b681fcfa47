package infra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jiri/constellation/internal/logging"
)

// DefaultDebounce is how long the watcher waits after the last write before
// re-reading the manifest.
const DefaultDebounce = 100 * time.Millisecond

// ManifestWatcher re-reads a manifest file whenever it changes and queues
// it on the manual authority. The new set takes effect at the next tick.
type ManifestWatcher struct {
	path     string
	manual   *Manual
	debounce time.Duration
	log      logging.Logger
	watcher  *fsnotify.Watcher
}

// NewManifestWatcher watches the directory containing path, so that
// editors which replace the file on save are picked up as well.
func NewManifestWatcher(path string, m *Manual, debounce time.Duration) (*ManifestWatcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve manifest path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	return &ManifestWatcher{
		path:     abs,
		manual:   m,
		debounce: debounce,
		log:      m.log,
		watcher:  w,
	}, nil
}

// Run processes file events until ctx is cancelled.
func (mw *ManifestWatcher) Run(ctx context.Context) error {
	defer mw.watcher.Close()

	timer := time.NewTimer(mw.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case ev, ok := <-mw.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != mw.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(mw.debounce)
		case err, ok := <-mw.watcher.Errors:
			if !ok {
				return nil
			}
			mw.log.Warn(ctx, "manifest watcher error", logging.Err(err))
		case <-timer.C:
			mw.reload(ctx)
		}
	}
}

func (mw *ManifestWatcher) reload(ctx context.Context) {
	links, err := ReadManifest(mw.path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		mw.log.Warn(ctx, "manifest reload failed",
			logging.String("path", mw.path),
			logging.Err(err),
		)
		return
	}
	mw.manual.Queue(links)
	mw.log.Debug(ctx, "manifest reload queued",
		logging.String("path", mw.path),
		logging.Int("links", len(links)),
	)
}
