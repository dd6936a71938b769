// Package jsonfile watches JSON documents on disk.
package jsonfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/colonyops/kvstore/internal/core/logging"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const (
	debounceDelay   = 50 * time.Millisecond
	eventBufferSize = 100
)

// ErrClosed is returned by Watch after Close.
var ErrClosed = errors.New("watcher closed")

// Event reports that the watched document changed on disk.
type Event struct {
	Path      string    `json:"path"`
	Removed   bool      `json:"removed"`
	Timestamp time.Time `json:"timestamp"`
}

// DocumentWatcher watches a single JSON document using fsnotify. The parent
// directory is watched so atomic replacements through a rename are seen;
// events for other files in it are dropped.
type DocumentWatcher struct {
	path    string
	name    string
	watcher *fsnotify.Watcher
	log     zerolog.Logger

	mu          sync.Mutex
	subscribers []chan<- Event
	debounce    *time.Timer
	closed      bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDocumentWatcher creates a watcher for the document at path. The parent
// directory is created if it doesn't exist; the document itself need not.
func NewDocumentWatcher(path string) (*DocumentWatcher, error) {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	dw := &DocumentWatcher{
		path:    path,
		name:    filepath.Base(path),
		watcher: watcher,
		log:     logging.Component("watcher").With().Str("path", path).Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}

	dw.wg.Add(1)
	go dw.run()

	return dw, nil
}

// Path returns the watched document path.
func (dw *DocumentWatcher) Path() string {
	return dw.path
}

// Watch returns a channel that receives an event after each burst of changes
// to the document. The channel is closed when ctx is done or the watcher is
// closed. Slow subscribers miss events rather than block the watcher.
func (dw *DocumentWatcher) Watch(ctx context.Context) (<-chan Event, error) {
	ch := make(chan Event, eventBufferSize)

	dw.mu.Lock()
	if dw.closed {
		dw.mu.Unlock()
		return nil, ErrClosed
	}
	dw.subscribers = append(dw.subscribers, ch)
	dw.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			dw.unsubscribe(ch)
		case <-dw.ctx.Done():
			// Watcher is closing, channel will be closed by Close()
		}
	}()

	return ch, nil
}

// Close stops watching and closes all subscriber channels.
func (dw *DocumentWatcher) Close() error {
	dw.cancel()

	dw.mu.Lock()
	if dw.debounce != nil {
		dw.debounce.Stop()
	}
	for _, ch := range dw.subscribers {
		close(ch)
	}
	dw.subscribers = nil
	dw.closed = true
	dw.mu.Unlock()

	err := dw.watcher.Close()
	dw.wg.Wait()
	return err
}

func (dw *DocumentWatcher) unsubscribe(ch chan<- Event) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	for i, sub := range dw.subscribers {
		if sub == ch {
			dw.subscribers = append(dw.subscribers[:i], dw.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

func (dw *DocumentWatcher) run() {
	defer dw.wg.Done()

	for {
		select {
		case <-dw.ctx.Done():
			return
		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			dw.handleEvent(event)
		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			dw.log.Warn().Err(err).Msg("watch error")
		}
	}
}

func (dw *DocumentWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Base(event.Name) != dw.name {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return
	}

	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.closed {
		return
	}
	if dw.debounce != nil {
		dw.debounce.Stop()
	}
	dw.debounce = time.AfterFunc(debounceDelay, dw.notifySubscribers)
}

// notifySubscribers stats the document once the burst settles, so a replace
// through rename is reported as a write and not a removal.
func (dw *DocumentWatcher) notifySubscribers() {
	_, err := os.Stat(dw.path)
	event := Event{
		Path:      dw.path,
		Removed:   os.IsNotExist(err),
		Timestamp: time.Now(),
	}

	dw.mu.Lock()
	defer dw.mu.Unlock()

	for _, ch := range dw.subscribers {
		select {
		case ch <- event:
		default:
			dw.log.Debug().Msg("subscriber full, dropping event")
		}
	}
	dw.debounce = nil
}
