package hotreload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/platinummonkey/plugweave/pkg/async"
	"github.com/platinummonkey/plugweave/pkg/plugins"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce is the quiet period after the last event before a reload
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads a session when files under its search roots change.
// Directory roots are watched recursively; archive roots are watched through
// their parent directory. Run must be called exactly once.
type Watcher struct {
	session  *plugins.Session
	reloader *Reloader
	fsw      *fsnotify.Watcher
	log      logrus.FieldLogger
	debounce time.Duration
	timeout  time.Duration
	started  atomic.Bool

	mu       sync.Mutex
	dirs     map[string]bool
	roots    []string
	archives map[string]bool
}

// NewWatcher creates a watcher and registers the session's current roots
func NewWatcher(session *plugins.Session, reloader *Reloader, debounce time.Duration, log logrus.FieldLogger) (*Watcher, error) {
	if log == nil {
		log = logrus.New()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		session:  session,
		reloader: reloader,
		fsw:      fsw,
		log:      log.WithField("component", "watcher"),
		debounce: debounce,
		timeout:  5 * time.Minute,
		dirs:     make(map[string]bool),
		archives: make(map[string]bool),
	}
	w.refresh()
	return w, nil
}

// Watched returns the directories currently registered with fsnotify
func (w *Watcher) Watched() []string {
	return w.fsw.WatchList()
}

// refresh registers every directory below the directory roots and the
// parent directory of every archive root
func (w *Watcher) refresh() {
	var roots []string
	defer func() {
		w.mu.Lock()
		w.roots = roots
		w.mu.Unlock()
	}()

	for _, root := range w.session.Directories() {
		info, err := os.Stat(root)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			w.mu.Lock()
			w.archives[root] = true
			w.mu.Unlock()
			w.add(filepath.Dir(root))
			continue
		}
		roots = append(roots, root)

		_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				w.log.WithField("path", path).WithError(err).Debug("Skipping inaccessible path")
				return nil
			}
			if d.IsDir() {
				w.add(path)
			}
			return nil
		})
	}
}

func (w *Watcher) add(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dirs[dir] {
		return
	}
	if err := w.fsw.Add(dir); err != nil {
		w.log.WithField("path", dir).WithError(err).Warn("Failed to watch directory")
		return
	}
	w.dirs[dir] = true
}

// relevant filters out editor noise and unrelated files next to archive roots
func (w *Watcher) relevant(name string) bool {
	base := filepath.Base(name)
	if strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") || strings.HasPrefix(base, ".#") {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.archives[name] {
		return true
	}
	for _, root := range w.roots {
		if name == root || strings.HasPrefix(name, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Run blocks until ctx is cancelled, reloading after each debounced burst of
// filesystem events. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return fmt.Errorf("watcher: Run called more than once")
	}

	var (
		mu      sync.Mutex
		timer   *time.Timer
		running atomic.Bool
	)

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			// a reload is in progress; try again once it had time to finish
			mu.Lock()
			timer.Reset(w.debounce)
			mu.Unlock()
			return
		}

		async.SafeGo(ctx, w.log, w.timeout, "watch reload", func(ctx context.Context) error {
			defer running.Store(false)
			_, _, err := w.reloader.Reload(ctx, TriggerWatch)
			w.refresh()
			return err
		})
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.log.WithError(err).Warn("Failed to close fsnotify watcher")
		}
	}()

	w.log.WithField("directories", len(w.fsw.WatchList())).Info("Watching plugin roots")
	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("watcher: fsnotify event channel closed unexpectedly")
			}
			if !w.relevant(evt.Name) {
				continue
			}
			if evt.Has(fsnotify.Create) {
				if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
					w.add(evt.Name)
				}
			}
			w.log.WithFields(logrus.Fields{
				"path": evt.Name,
				"op":   evt.Op.String(),
			}).Debug("Plugin tree changed")

			mu.Lock()
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("watcher: fsnotify error channel closed unexpectedly")
			}
			w.log.WithError(err).Warn("fsnotify error")
		}
	}
}
