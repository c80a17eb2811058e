package tailwind

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch recompiles the stylesheet whenever a file under the input's directory
// or one of the watch paths changes. Bursts of events within the debounce
// window trigger a single compile. Compile failures are logged and watching
// continues. Watch blocks until ctx is done.
func (p *TailwindPlugin) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	roots := append([]string{filepath.Dir(p.config.Input)}, p.config.WatchPaths...)
	for _, root := range roots {
		if err := addTree(watcher, root); err != nil {
			return err
		}
	}

	output, _ := filepath.Abs(p.config.Output)
	p.logger.WithField("paths", roots).Info("watching for changes")

	// compiles run on this goroutine, so they never overlap and none
	// starts after ctx is done
	timer := time.NewTimer(p.config.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			if err := p.Compile(ctx); err != nil && ctx.Err() == nil {
				p.logger.WithError(err).Error("recompile failed")
			}
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// the compiler's own output must not retrigger it
			if abs, _ := filepath.Abs(event.Name); abs == output {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = addTree(watcher, event.Name)
				}
			}
			timer.Reset(p.config.Debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.WithError(err).Warn("watch error")
		}
	}
}

// addTree watches root and every directory below it. Missing roots are skipped.
func addTree(watcher *fsnotify.Watcher, root string) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if err := watcher.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
		}
		return nil
	})
}
