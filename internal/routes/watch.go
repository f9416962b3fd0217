package routes

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch calls onChange after files with extension ext in dir are created,
// written, removed or renamed. Events are coalesced over quiet so an editor's
// save burst triggers one call. Watch returns when ctx is done.
func Watch(ctx context.Context, dir, ext string, quiet time.Duration, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if relevant(ev, ext) {
				pending = time.After(quiet)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", dir, err)
		case <-pending:
			pending = nil
			onChange()
		}
	}
}

func relevant(ev fsnotify.Event, ext string) bool {
	if !strings.HasSuffix(filepath.Base(ev.Name), ext) {
		return false
	}
	return ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}
