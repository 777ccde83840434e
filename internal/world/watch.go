package world

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/grammar"
)

// Watch logs edits to any world's policy file until ctx is done. Cached
// grammars are not reloaded; a restart picks up the change.
func (r *Registry) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating policy watcher: %w", err)
	}

	policies := make(map[string]string)
	for _, id := range r.WorldIDs() {
		root, _ := r.Root(id)
		path := filepath.Clean(filepath.Join(root, grammar.PolicyPath))
		dir := filepath.Dir(path)
		if err := watcher.Add(dir); err != nil {
			r.logger.Warn("cannot watch policy directory", "world", id, "dir", dir, "error", err)
			continue
		}
		policies[path] = id
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				id, tracked := policies[filepath.Clean(event.Name)]
				if !tracked {
					continue
				}
				r.logger.Warn("resolution grammar changed on disk; restart to apply",
					"world", id, "path", event.Name, "op", event.Op.String())
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.logger.Error("policy watcher error", "error", err)
			}
		}
	}()

	return nil
}
