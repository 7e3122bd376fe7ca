package agent

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watch emits paths of candidate files under the watch directory: everything
// present at startup, everything fsnotify reports, and everything a periodic
// rescan finds. Gateways write exports over SMB shares where fsnotify events
// can be lost, so the poll rescan is the safety net, not an optimization.
// Re-emitting an already-uploaded path is fine; the ledger filters it.
func Watch(ctx context.Context, cfg *Config, logger *logrus.Logger) (<-chan string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := addDirs(watcher, cfg.WatchPath); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	paths := make(chan string, 256)

	emit := func(path string) {
		if !matchesGlob(cfg.FileGlob, path) {
			return
		}
		select {
		case paths <- path:
		case <-ctx.Done():
		}
	}

	scan := func() {
		_ = filepath.WalkDir(cfg.WatchPath, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil || d.IsDir() {
				return nil
			}
			emit(path)
			return nil
		})
	}

	go func() {
		defer close(paths)
		defer watcher.Close()

		scan()
		ticker := time.NewTicker(cfg.PollInterval())
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				scan()
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Create != 0 {
					// A new subdirectory needs its own watch.
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						_ = addDirs(watcher, event.Name)
						continue
					}
				}
				// Rename events carry the old path; the new name arrives
				// as its own Create, so only Create and Write are emitted.
				if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					emit(event.Name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithFields(logrus.Fields{"watchPath": cfg.WatchPath}).Warn("watcher error: " + err.Error())
			}
		}
	}()

	return paths, nil
}

func addDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

func matchesGlob(glob string, path string) bool {
	if glob == "" {
		return true
	}
	ok, err := filepath.Match(glob, filepath.Base(path))
	return err == nil && ok
}
