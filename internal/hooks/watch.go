package hooks

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads the hook set whenever path changes, until ctx is done.
// The parent directory is watched so editors that replace the file
// atomically are picked up. onReload, when non-nil, is called after each
// reload attempt with its error.
func (e *Engine) Watch(ctx context.Context, path string, onReload func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating hook watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(target), err)
	}

	const mask = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || ev.Op&mask == 0 {
				continue
			}
			err := e.Reload(target)
			if err != nil {
				e.logger.Warn(ctx, "hook reload failed, keeping previous hooks",
					zap.String("path", target), zap.Error(err))
			} else {
				e.logger.Info(ctx, "hooks reloaded",
					zap.String("path", target), zap.Int("count", len(e.Hooks())))
			}
			if onReload != nil {
				onReload(err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.logger.Warn(ctx, "hook watcher error", zap.Error(err))
		}
	}
}
