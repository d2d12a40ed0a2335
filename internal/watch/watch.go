// Package watch emits file events for the directories a rucksack
// session cares about: image files in the working directory and the
// store metadata files next to them.
package watch

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/agentic-research/rucksack/internal/batch"
	"github.com/agentic-research/rucksack/internal/rucksack"
)

// Kind classifies which file an event refers to.
type Kind int

const (
	KindImage Kind = iota
	KindIndex
	KindSettings
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindIndex:
		return "index"
	case KindSettings:
		return "settings"
	}
	return "unknown"
}

// Op is the operation behind an event.
type Op int

const (
	OpCreate Op = iota
	OpModify
	OpDelete
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	}
	return "unknown"
}

// Event is one relevant file change.
type Event struct {
	Path string
	Kind Kind
	Op   Op
}

// Watcher converts raw fsnotify traffic on the watched directories
// into classified Events. Files that are neither images nor store
// metadata are dropped.
type Watcher struct {
	fsw     *fsnotify.Watcher
	events  chan Event
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// New creates a watcher. Call Start before expecting events.
func New() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		fsw:    fsw,
		events: make(chan Event, 100),
		errors: make(chan error, 10),
		done:   make(chan struct{}),
	}, nil
}

// Start begins watching dirs. Watching is not recursive.
func (w *Watcher) Start(dirs ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	for i, dir := range dirs {
		if err := w.fsw.Add(dir); err != nil {
			for _, prev := range dirs[:i] {
				_ = w.fsw.Remove(prev)
			}
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	w.running = true
	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop ends watching and closes both channels. It blocks until the
// processing goroutine has exited. Stopping a stopped watcher is a
// no-op.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	if err := w.fsw.Close(); err != nil {
		return fmt.Errorf("close fsnotify watcher: %w", err)
	}
	w.wg.Wait()

	close(w.events)
	close(w.errors)
	return nil
}

// Events returns the event stream. Closed by Stop.
func (w *Watcher) Events() <-chan Event { return w.events }

// Errors returns the error stream. Closed by Stop.
func (w *Watcher) Errors() <-chan error { return w.errors }

// IsRunning reports whether Start has been called and Stop has not.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if out, ok := classify(ev); ok {
				select {
				case w.events <- out:
				case <-w.done:
					return
				}
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			case <-w.done:
				return
			}
		}
	}
}

// classify keeps events for images and store metadata. Chmod and
// other operations are dropped along with unrelated files.
func classify(ev fsnotify.Event) (Event, bool) {
	var kind Kind
	switch {
	case filepath.Base(ev.Name) == rucksack.IndexName:
		kind = KindIndex
	case filepath.Base(ev.Name) == batch.SettingsName:
		kind = KindSettings
	case batch.IsImage(ev.Name):
		kind = KindImage
	default:
		return Event{}, false
	}

	var op Op
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
	case ev.Has(fsnotify.Write):
		op = OpModify
	case ev.Has(fsnotify.Remove):
		op = OpDelete
	case ev.Has(fsnotify.Rename):
		// The new name arrives as its own create event.
		op = OpDelete
	default:
		return Event{}, false
	}

	return Event{Path: ev.Name, Kind: kind, Op: op}, true
}
