package search

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/cupid-chocolate/giftlab/internal/observability"
)

// Invalidator is anything whose cached state goes stale on a data change.
type Invalidator interface {
	Invalidate()
}

// Watcher invalidates the product index whenever the SQLite database file,
// or its rollback journal or WAL, is written, created or renamed.
type Watcher struct {
	target Invalidator
	dbPath string
	fsw    *fsnotify.Watcher
	logger *observability.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher watches the directory holding dbPath. The parent directory is
// watched so that files replaced by rename are still seen.
func NewWatcher(dbPath string, target Invalidator, logger *observability.Logger) (*Watcher, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		target: target,
		dbPath: abs,
		fsw:    fsw,
		logger: logger,
	}, nil
}

// Start runs the event loop in the background until ctx is done or Stop is
// called.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(ctx)
	}()
}

// Stop ends the event loop and releases the underlying watcher.
func (w *Watcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	return w.fsw.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.isRelevant(ev) {
				continue
			}
			w.logger.Debug().Str("file", ev.Name).Str("op", ev.Op.String()).Msg("Database changed")
			w.target.Invalidate()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("Database watcher error")
		}
	}
}

// isRelevant ignores the shared-memory file, which readers touch too.
func (w *Watcher) isRelevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(ev.Name)
	if !filepath.IsAbs(name) {
		if abs, err := filepath.Abs(name); err == nil {
			name = abs
		}
	}
	switch name {
	case w.dbPath, w.dbPath + "-wal", w.dbPath + "-journal":
		return true
	}
	return false
}
