// Package watcher reports changes to supported files below a directory.
// Bursts of events for the same file (editors often write several times
// per save) are collapsed into one change after a quiet period.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/ragline/internal/logger"
)

// DefaultDebounce is the quiet period before a change is reported.
const DefaultDebounce = 500 * time.Millisecond

// ChangeType is the kind of file change.
type ChangeType string

// Change types.
const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// Change is a debounced file change.
type Change struct {
	Path string
	Type ChangeType
}

// Watcher watches a directory tree.
type Watcher struct {
	root     string
	debounce time.Duration
	accept   func(path string) bool

	fs *fsnotify.Watcher
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithFilter limits changes to paths accept returns true for.
func WithFilter(accept func(path string) bool) Option {
	return func(w *Watcher) {
		w.accept = accept
	}
}

// New starts watching root and every non-hidden directory below it.
func New(root string, opts ...Option) (*Watcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New(root + " is not a directory")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{root: root, debounce: DefaultDebounce, accept: func(string) bool { return true }, fs: fw}
	for _, opt := range opts {
		opt(w)
	}
	if err := w.addTree(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// Run delivers changes to fn until ctx ends or the watcher is closed. fn
// is called from a single goroutine.
func (w *Watcher) Run(ctx context.Context, fn func(Change)) error {
	var (
		mu      sync.Mutex
		pending = make(map[string]ChangeType)
		timers  = make(map[string]*time.Timer)
		out     = make(chan Change, 16)
	)

	schedule := func(path string, t ChangeType) {
		mu.Lock()
		defer mu.Unlock()
		// A create followed by writes is still a create.
		if prev, ok := pending[path]; ok && prev == ChangeCreated && t == ChangeUpdated {
			t = ChangeCreated
		}
		pending[path] = t
		if timer, ok := timers[path]; ok {
			timer.Stop()
		}
		timers[path] = time.AfterFunc(w.debounce, func() {
			mu.Lock()
			change := Change{Path: path, Type: pending[path]}
			delete(pending, path)
			delete(timers, path)
			mu.Unlock()
			select {
			case out <- change:
			case <-ctx.Done():
			}
		})
	}

	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case change := <-out:
			fn(change)

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if change, ok := w.classify(event); ok {
				schedule(change.Path, change.Type)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher: %v", err)
		}
	}
}

// classify maps an fsnotify event to a change. New directories are added
// to the watch list rather than reported.
func (w *Watcher) classify(event fsnotify.Event) (Change, bool) {
	if isHidden(w.root, event.Name) {
		return Change{}, false
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if !w.accept(event.Name) {
			return Change{}, false
		}
		return Change{Path: event.Name, Type: ChangeDeleted}, true

	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil {
			return Change{}, false
		}
		if info.IsDir() {
			if event.Has(fsnotify.Create) {
				if err := w.addTree(event.Name); err != nil {
					logger.Warn("watcher: adding %s: %v", event.Name, err)
				}
			}
			return Change{}, false
		}
		if !w.accept(event.Name) {
			return Change{}, false
		}
		t := ChangeUpdated
		if event.Has(fsnotify.Create) {
			t = ChangeCreated
		}
		return Change{Path: event.Name, Type: t}, true
	}
	return Change{}, false
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		logger.Debug("watching %s", path)
		return w.fs.Add(path)
	})
}

// isHidden reports whether any element of path below root starts with a dot.
func isHidden(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}
