// Package watcher re-triggers organize runs when ROM files arrive in a tree.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jamesainslie/romsort/pkg/romsort/logging"
	"github.com/jamesainslie/romsort/pkg/romsort/organize"
)

// DefaultDebounce is the quiet period used when Options.Debounce is unset.
const DefaultDebounce = 2 * time.Second

// Options configures a Watcher.
type Options struct {
	// Debounce is how long the tree must stay quiet after a relevant
	// event before the trigger fires.
	Debounce time.Duration

	// Exclude holds the same patterns the organize walk skips.
	Exclude []string

	// Accept decides whether a file event is relevant.
	// Defaults to organize.IsCandidate.
	Accept func(path string) bool
}

// Watcher watches a root directory recursively.
type Watcher struct {
	root    string
	opts    Options
	watcher *fsnotify.Watcher
	log     *logging.Logger

	mu     sync.Mutex
	paths  map[string]bool
	closed bool
}

// New creates a Watcher over root and registers every directory below it.
// Symlinks are not followed.
func New(root string, opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Accept == nil {
		opts.Accept = organize.IsCandidate
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, organize.ErrRootNotDir
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:    absRoot,
		opts:    opts,
		watcher: fsw,
		log:     logging.Get("watcher"),
		paths:   make(map[string]bool),
	}
	if err := w.addTree(absRoot); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Root returns the absolute watched root.
func (w *Watcher) Root() string { return w.root }

// Watched returns the number of directories currently watched.
func (w *Watcher) Watched() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.paths)
}

// Run processes events until ctx is done or the watcher is closed. After a
// relevant file event and Debounce of quiet, trigger is called with ctx.
// Events keep queueing while trigger runs, so a burst that arrives
// mid-run fires exactly one follow-up.
func (w *Watcher) Run(ctx context.Context, trigger func(context.Context)) error {
	timer := time.NewTimer(w.opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.handleEvent(event) {
				timer.Reset(w.opts.Debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// Lost events; a run catches up with whatever arrived.
				w.log.Warn("event queue overflowed", "root", w.root)
				timer.Reset(w.opts.Debounce)
				continue
			}
			w.log.Error("watcher error", "error", err)

		case <-timer.C:
			w.log.Info("changes settled, organizing", "root", w.root)
			trigger(ctx)
		}
	}
}

// handleEvent updates the watch set and reports whether event should
// schedule a run.
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	path := event.Name
	if organize.Excluded(path, w.opts.Exclude) {
		return false
	}

	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Lstat(path)
		if err != nil {
			return false
		}
		if info.IsDir() {
			if err := w.addTree(path); err != nil {
				w.log.Warn("failed to watch new directory", "path", path, "error", err)
			}
			// A directory moved in whole may already hold ROMs.
			return true
		}
		return info.Mode().IsRegular() && w.opts.Accept(path)

	case event.Has(fsnotify.Write):
		return w.opts.Accept(path)

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.dropTree(path)
	}
	return false
}

// addTree watches dir and every directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == dir {
				return walkErr
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 || !d.IsDir() {
			return nil
		}
		if path != w.root && organize.Excluded(path, w.opts.Exclude) {
			return filepath.SkipDir
		}
		return w.addWatch(path)
	})
}

func (w *Watcher) addWatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.paths[path] {
		return nil
	}
	if err := w.watcher.Add(path); err != nil {
		return err
	}
	w.paths[path] = true
	return nil
}

// dropTree forgets path and anything below it.
func (w *Watcher) dropTree(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for p := range w.paths {
		if p == path || isSubPath(p, path) {
			_ = w.watcher.Remove(p)
			delete(w.paths, p)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.paths = make(map[string]bool)
	return w.watcher.Close()
}

func isSubPath(path, parent string) bool {
	return len(path) > len(parent) && path[:len(parent)+1] == parent+string(filepath.Separator)
}
