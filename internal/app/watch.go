package app

import (
	"context"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/richcarl/stdapp/internal/ctxlog"
	"github.com/richcarl/stdapp/internal/goal"
)

// debounceDelay batches bursts of file events (editor save, grammar
// generation) into a single rebuild.
const debounceDelay = 250 * time.Millisecond

// watch runs the goal once, then re-runs it whenever a watched source
// directory changes, until the context is canceled. A failing build does
// not end the watch; the next change retries incrementally.
func (a *App) watch(ctx context.Context, g goal.Goal) error {
	logger := ctxlog.FromContext(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	runOnce := func() {
		if _, err := a.build(ctx, g); err != nil {
			logger.Error("Build failed, watching for changes.", "error", err)
		}
	}
	// Build before registering the watches: on a fresh package the first
	// build creates the source directory the watches attach to.
	runOnce()

	for _, dir := range []string{a.cfg.SourceRoot(), a.cfg.IncludeRoot(), a.cfg.TestRoot()} {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return err
		}
		logger.Debug("Watching directory.", "path", dir)
	}

	var debounce *time.Timer
	rebuild := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			logger.Debug("File event.", "op", event.Op.String(), "path", event.Name)
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, func() {
				select {
				case rebuild <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error.", "error", err)
		case <-rebuild:
			runOnce()
		}
	}
}
