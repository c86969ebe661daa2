package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ivlev/vidzoom/internal/timeline"
)

// WatchDebounce collapses bursts of writes into one reload.
const WatchDebounce = 100 * time.Millisecond

// WatchDocument reloads the project events whenever the document at path is
// written, until ctx is done. onReload gets the new events, or the error
// that kept the old ones in place. WatchDocument blocks.
func (p *Project) WatchDocument(ctx context.Context, path string, onReload func([]timeline.Event, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so the directory is watched.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}

	var (
		debounce *time.Timer
		fire     <-chan time.Time
	)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filepath.Base(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(WatchDebounce)
			} else {
				debounce.Reset(WatchDebounce)
			}
			fire = debounce.C

		case <-fire:
			fire = nil
			err := p.LoadDocument(path)
			if err != nil {
				p.logger.Warn("project reload failed", "path", path, "error", err)
				onReload(nil, err)
				continue
			}
			p.logger.Info("project reloaded", "path", path)
			onReload(p.ListEvents(), nil)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("watcher error", "error", err)
		}
	}
}
