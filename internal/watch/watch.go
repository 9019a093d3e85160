// Package watch reports changes to a single file made by other programs.
package watch

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 200 * time.Millisecond

const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

// Event describes a burst of changes to the watched file. Op is the union of
// the operations seen during the burst.
type Event struct {
	Path string
	Op   fsnotify.Op
}

// Removed reports whether the file may no longer exist at Path.
func (e Event) Removed() bool {
	return e.Op.Has(fsnotify.Remove) || e.Op.Has(fsnotify.Rename)
}

type Option func(*Watcher)

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Watcher watches the parent directory of a file so that atomic replaces
// (write temp, rename over) keep being observed.
type Watcher struct {
	path     string
	base     string
	debounce time.Duration
	logger   *slog.Logger

	fs     *fsnotify.Watcher
	events chan Event
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func New(path string, opts ...Option) (*Watcher, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("watch: empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     abs,
		base:     filepath.Base(abs),
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		fs:       fw,
		events:   make(chan Event, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.wg.Add(1)
	go w.loop()
	w.logger.Debug("watching_file", slog.String("path", abs))
	return w, nil
}

// Events is closed after Close.
func (w *Watcher) Events() <-chan Event { return w.events }

func (w *Watcher) Path() string { return w.path }

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fs.Close()
		w.wg.Wait()
		close(w.events)
	})
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
		pending fsnotify.Op
	)
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
		} else {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
		}
		timerCh = timer.C
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != w.base {
				continue
			}
			if ev.Op&relevantOps == 0 {
				continue
			}
			pending |= ev.Op & relevantOps
			schedule()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch_error", slog.String("path", w.path), slog.Any("err", err))
		case <-timerCh:
			timerCh = nil
			out := Event{Path: w.path, Op: pending}
			pending = 0
			select {
			case w.events <- out:
			case <-w.done:
				return
			}
		}
	}
}
