package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/codefionn/modelgate/internal/logger"
)

// Watcher reloads the config file when it changes on disk and hands the
// parsed result to a callback. Editors replace files rather than write in
// place, so the watch covers the directory and filters by name.
type Watcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
	log     *logger.Logger
}

// Watch starts watching path. onChange runs on the watcher goroutine for
// every successful reload; a file that fails to parse is logged and
// skipped, keeping the last good config active.
func Watch(path string, onChange func(*Config)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	w := &Watcher{
		watcher: fsWatcher,
		done:    make(chan struct{}),
		log:     logger.Global().WithPrefix("config"),
	}

	target := filepath.Clean(path)
	go func() {
		defer close(w.done)
		for {
			select {
			case event, ok := <-fsWatcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				cfg, err := Load(target)
				if err != nil {
					w.log.Warn("ignoring config change, reload failed: %v", err)
					continue
				}
				w.log.Info("config reloaded from %s", target)
				onChange(cfg)
			case err, ok := <-fsWatcher.Errors:
				if !ok {
					return
				}
				w.log.Warn("config watch error: %v", err)
			}
		}
	}()

	return w, nil
}

// Close stops the watcher and waits for the goroutine to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
