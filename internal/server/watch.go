package server

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchRuleFiles watches the directories holding rule files and reloads
// the gate on changes, debounced so editors writing in bursts trigger one
// reload.
func (s *Server) watchRuleFiles(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// Watch the parent directories: editors replace files via rename, and
	// a directory watch survives that where a file watch would not.
	dirs := make(map[string]struct{})
	for _, f := range s.stageFiles {
		dirs[filepath.Dir(f.Path)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			s.logger.Error("failed to watch rules directory", "dir", dir, "error", err)
		}
	}

	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return nil

		case event := <-watcher.Events:
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			ext := filepath.Ext(event.Name)
			if ext != ".yaml" && ext != ".yml" {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
				s.logger.Debug("rule file changed", "file", event.Name)
				s.reloadGate()
			})

		case err := <-watcher.Errors:
			s.logger.Error("watcher error", "error", err)
		}
	}
}
