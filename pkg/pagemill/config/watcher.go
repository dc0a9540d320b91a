package config

import (
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher is a Provider that reloads the configuration file when it changes on
// disk. A reload that fails to parse or validate keeps the previous snapshot.
type Watcher struct {
	path    string
	fw      *fsnotify.Watcher
	logger  *zap.Logger
	current atomic.Value // Site
	done    chan struct{}
}

// NewWatcher loads the file once and starts watching its directory. Watching
// the directory rather than the file survives editors that replace the file on
// save.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	site, err := Load(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		path:   path,
		fw:     fw,
		logger: logger,
		done:   make(chan struct{}),
	}
	w.current.Store(site)
	go w.loop()
	return w, nil
}

// Site returns the current configuration snapshot.
func (w *Watcher) Site() Site {
	return w.current.Load().(Site)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fw.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			site, err := Load(w.path)
			if err != nil {
				w.logger.Warn("config reload failed, keeping previous snapshot",
					zap.String("path", w.path), zap.Error(err))
				continue
			}
			w.current.Store(site)
			w.logger.Info("config reloaded", zap.String("path", w.path))
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		case <-w.done:
			return
		}
	}
}
