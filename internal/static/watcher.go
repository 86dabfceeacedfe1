package static

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher drops cached ETags as soon as files under root change, so a
// rebuilt asset is never served with a stale validator.
type Watcher struct {
	root   string
	etags  *ETagCache
	logger *logrus.Logger

	fsw *fsnotify.Watcher
	wg  sync.WaitGroup
}

func NewWatcher(root string, etags *ETagCache, logger *logrus.Logger) *Watcher {
	return &Watcher{
		root:   root,
		etags:  etags,
		logger: logger,
	}
}

// Start adds every directory under root and processes events until ctx is
// done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw

	if err := w.addTree(w.root); err != nil {
		fsw.Close()
		return err
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(ctx)
	}()
	return nil
}

func (w *Watcher) Stop() {
	if w.fsw == nil {
		return
	}
	if err := w.fsw.Close(); err != nil {
		w.logger.WithError(err).Warn("Failed to close file watcher")
	}
	w.wg.Wait()
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(p)
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("Watcher error")
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	name := filepath.ToSlash(rel)
	w.etags.Invalidate(name)

	if event.Has(fsnotify.Create) {
		if err := w.addTree(event.Name); err != nil {
			w.logger.WithError(err).WithField("path", name).Debug("Failed to watch new path")
		}
	}

	w.logger.WithFields(logrus.Fields{
		"path": name,
		"op":   event.Op.String(),
	}).Debug("Asset changed")
}
