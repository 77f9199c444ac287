// Package watch detects changes to the script file a host runs.
//
// Change is decided by content digest against the last committed digest,
// not by timestamps: a file whose new content fails to compile keeps
// reporting an event every poll until some content is committed.
package watch

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("olive.watch")

// Mode selects how the watcher learns about changes.
type Mode string

const (
	// ModeStat rereads the file on every poll.
	ModeStat Mode = "stat"
	// ModeNotify rereads only after the OS reports activity on the file.
	ModeNotify Mode = "notify"
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeStat:
		return ModeStat, nil
	case ModeNotify:
		return ModeNotify, nil
	}
	return "", fmt.Errorf("watch: unknown mode %q (want stat or notify)", s)
}

// Event reports script content that differs from the committed digest.
// Source holds the bytes the digest was computed from.
type Event struct {
	Path       string
	DetectedAt time.Time
	Digest     string
	Source     []byte
}

// WatchError reports a script file that exists but cannot be read.
type WatchError struct {
	Path string
	Err  error
}

func (e *WatchError) Error() string {
	return fmt.Sprintf("watch %s: %v", e.Path, e.Err)
}

func (e *WatchError) Unwrap() error { return e.Err }

// cached is the last content read.
type cached struct {
	valid  bool
	digest string
	source []byte
}

// Watcher polls a single script path.
type Watcher struct {
	mu        sync.Mutex
	path      string
	mode      Mode
	committed string
	cache     cached

	notifier *fsnotify.Watcher
	dir      string
	target   atomic.Value // cleaned path, read by drain without mu
	dirty    atomic.Bool
	done     chan struct{}
}

// New creates a watcher for path. In notify mode the parent directory is
// watched; if that fails the watcher falls back to stat mode.
func New(path string, mode Mode) (*Watcher, error) {
	if mode == "" {
		mode = ModeStat
	}
	if mode != ModeStat && mode != ModeNotify {
		return nil, fmt.Errorf("watch: unknown mode %q", mode)
	}
	w := &Watcher{path: path, mode: mode, done: make(chan struct{})}
	w.target.Store(filepath.Clean(path))
	w.dirty.Store(true)
	if mode == ModeNotify {
		if err := w.startNotify(); err != nil {
			log.Warningf("notify unavailable, falling back to stat: %s", err)
			w.mode = ModeStat
		}
	}
	return w, nil
}

func (w *Watcher) startNotify() error {
	n, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.notifier = n
	if err := w.watchDir(w.path); err != nil {
		n.Close()
		w.notifier = nil
		return err
	}
	go w.drain(n)
	return nil
}

// watchDir moves the directory watch to path's parent. The old directory
// stays watched unless the new one was added.
func (w *Watcher) watchDir(path string) error {
	dir := filepath.Dir(path)
	if dir == w.dir {
		return nil
	}
	if err := w.notifier.Add(dir); err != nil {
		return err
	}
	if w.dir != "" {
		_ = w.notifier.Remove(w.dir)
	}
	w.dir = dir
	return nil
}

func (w *Watcher) drain(n *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-n.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) == w.target.Load().(string) {
				w.dirty.Store(true)
			}
		case err, ok := <-n.Errors:
			if !ok {
				return
			}
			log.Warningf("notify: %s", err)
			// Overflow or similar: rescan rather than miss a change.
			w.dirty.Store(true)
		case <-w.done:
			return
		}
	}
}

// Path returns the watched path.
func (w *Watcher) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

// Mode returns the effective mode.
func (w *Watcher) Mode() Mode {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mode
}

// Poll is PollErr with errors logged instead of returned. It never blocks on
// anything but the file read.
func (w *Watcher) Poll() (Event, bool) {
	ev, ok, err := w.PollErr()
	if err != nil {
		log.Warningf("%s", err)
	}
	return ev, ok
}

// PollErr reports whether the script content differs from the committed
// digest. A missing file is not an error and yields no event.
func (w *Watcher) PollErr() (Event, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.mode == ModeStat || w.dirty.Swap(false) {
		if err := w.refresh(); err != nil {
			// Try again next poll.
			w.dirty.Store(true)
			return Event{}, false, err
		}
	}

	if !w.cache.valid || w.cache.digest == w.committed {
		return Event{}, false, nil
	}
	return Event{
		Path:       w.path,
		DetectedAt: time.Now(),
		Digest:     w.cache.digest,
		Source:     w.cache.source,
	}, true, nil
}

// refresh rereads and hashes the file. Size and mtime are not trusted: an
// edit can keep both.
func (w *Watcher) refresh() error {
	info, err := os.Stat(w.path)
	if errors.Is(err, fs.ErrNotExist) {
		w.cache = cached{}
		return nil
	}
	if err != nil {
		return &WatchError{Path: w.path, Err: err}
	}
	if info.IsDir() {
		return &WatchError{Path: w.path, Err: errors.New("is a directory")}
	}
	src, err := os.ReadFile(w.path)
	if errors.Is(err, fs.ErrNotExist) {
		w.cache = cached{}
		return nil
	}
	if err != nil {
		return &WatchError{Path: w.path, Err: err}
	}
	w.cache = cached{valid: true, digest: digest(src), source: src}
	return nil
}

// Commit records digest as the content now running.
func (w *Watcher) Commit(digest string) {
	w.mu.Lock()
	w.committed = digest
	w.mu.Unlock()
}

// Committed returns the last committed digest.
func (w *Watcher) Committed() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.committed
}

// Reset forgets the committed digest so the current content is reported
// again on the next poll.
func (w *Watcher) Reset() {
	w.mu.Lock()
	w.committed = ""
	w.mu.Unlock()
	w.dirty.Store(true)
}

// SetPath switches to another script. The committed digest is cleared so the
// new file is reported even if its content equals the old one.
func (w *Watcher) SetPath(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.notifier != nil {
		if err := w.watchDir(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}
	w.path = path
	w.target.Store(filepath.Clean(path))
	w.committed = ""
	w.cache = cached{}
	w.dirty.Store(true)
	return nil
}

// Close stops notification.
func (w *Watcher) Close() error {
	w.mu.Lock()
	n := w.notifier
	w.notifier = nil
	w.mu.Unlock()
	if n == nil {
		return nil
	}
	close(w.done)
	return n.Close()
}

func digest(src []byte) string {
	sum := sha256.Sum256(src)
	return hex.EncodeToString(sum[:])
}
