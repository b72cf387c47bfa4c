package file

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/sentinel/internal/core/ports/driven"
	"github.com/custodia-labs/sentinel/internal/logger"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 250 * time.Millisecond

var _ driven.CatalogWatcher = (*Watcher)(nil)

// Watcher signals changes to a catalog file.
type Watcher struct {
	path     string
	debounce time.Duration
}

// NewWatcher watches path. debounce <= 0 uses DefaultDebounce.
func NewWatcher(path string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{path: path, debounce: debounce}
}

// Watch sends one notification per settled burst of changes. The
// directory is watched so atomic rename-on-save is seen. The channel is
// closed when ctx is done.
func (w *Watcher) Watch(ctx context.Context) (<-chan struct{}, error) {
	if w.path == "" {
		return nil, errors.New("built-in catalog cannot be watched")
	}
	abs, err := filepath.Abs(w.path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer fw.Close()

		timer := time.NewTimer(w.debounce)
		timer.Stop()
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs || ev.Op == fsnotify.Chmod {
					continue
				}
				logger.Debug("catalog: %s %s", ev.Op, ev.Name)
				timer.Reset(w.debounce)
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				logger.Warn("catalog watcher: %v", err)
			case <-timer.C:
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}
