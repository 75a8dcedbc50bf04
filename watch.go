package arbor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits after the last file event
// before applying a batch of edits.
const DefaultDebounce = 100 * time.Millisecond

// WatchResult is one round of edits applied by Watch and the check that
// followed them.
type WatchResult struct {
	Changed     []File
	Removed     []File
	Diagnostics []Diagnostic
}

// WatchHandler receives each round of Watch. A non-nil error stops Watch
// and is returned from it.
type WatchHandler func(ctx context.Context, res *WatchResult) error

// Watch follows edits of the Python files under root until ctx is done.
// Files must already be loaded relative to the same root. Events are
// collected for debounce, then the changed files are re-read or removed,
// the workspace is re-checked, and handle is called with the outcome. Only
// queries depending on the edited files run again.
func (e *Engine) Watch(ctx context.Context, root string, debounce time.Duration, handle WatchHandler) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("arbor: resolve root: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("arbor: watch: %w", err)
	}
	defer w.Close()
	if err := e.watchTree(w, root); err != nil {
		return err
	}

	pending := make(map[string]bool)
	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := e.watchTree(w, ev.Name); err != nil {
						e.logger.Warn("watch new directory", "dir", ev.Name, "err", err)
					}
					continue
				}
			}
			rel, ok := e.watchedFile(root, ev.Name)
			if !ok {
				continue
			}
			pending[rel] = true
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				timer.Reset(debounce)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			e.logger.Warn("watch", "err", err)

		case <-timerC:
			timer, timerC = nil, nil
			res, err := e.applyEdits(ctx, root, pending)
			clear(pending)
			if err != nil {
				return err
			}
			if err := handle(ctx, res); err != nil {
				return err
			}
		}
	}
}

// watchTree adds dir and its subdirectories to w, skipping the directories
// Discover skips.
func (e *Engine) watchTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return fmt.Errorf("arbor: watch: %w", err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if p != dir && (strings.HasPrefix(name, ".") || skipDirs[name]) {
			return filepath.SkipDir
		}
		if err := w.Add(p); err != nil {
			return fmt.Errorf("arbor: watch %s: %w", p, err)
		}
		return nil
	})
}

// watchedFile reports the workspace path of an event, if it names a
// Python file Discover would have picked.
func (e *Engine) watchedFile(root, name string) (string, bool) {
	rel, err := filepath.Rel(root, name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if filepath.Ext(rel) != ".py" || e.excluded(rel) {
		return "", false
	}
	for _, elem := range strings.Split(rel, "/") {
		if strings.HasPrefix(elem, ".") || skipDirs[elem] {
			return "", false
		}
	}
	return rel, true
}

func (e *Engine) applyEdits(ctx context.Context, root string, pending map[string]bool) (*WatchResult, error) {
	res := &WatchResult{}
	for rel := range pending {
		f := File(rel)
		full := filepath.Join(root, filepath.FromSlash(rel))
		if _, err := os.Stat(full); errors.Is(err, fs.ErrNotExist) {
			e.RemoveSource(f)
			res.Removed = append(res.Removed, f)
			continue
		}
		text, err := e.fs.DownloadWithURL(ctx, full)
		if err != nil {
			e.logger.Warn("watch read", "file", rel, "err", err)
			continue
		}
		e.SetSource(f, text)
		res.Changed = append(res.Changed, f)
	}
	slices.Sort(res.Changed)
	slices.Sort(res.Removed)
	e.logger.Debug("applied edits", "changed", len(res.Changed), "removed", len(res.Removed), "revision", uint64(e.Revision()))

	diags, err := e.Check(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		e.logger.Warn("watch check", "err", err)
	}
	res.Diagnostics = diags
	return res, nil
}
