// Package tabsync is the cross-tab sync signal: every local mutation writes a
// timestamp to a well-known marker file, and every other session watching the
// same file triggers a full refetch. The marker is trigger-only; no state is
// carried through it.
package tabsync

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

type Broadcaster struct {
	path string

	mu          sync.Mutex
	lastWritten string
}

// New creates a broadcaster for the given marker path, creating the parent
// directory if needed.
func New(path string) (*Broadcaster, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &Broadcaster{path: path}, nil
}

func (b *Broadcaster) Path() string {
	return b.path
}

// Touch writes a fresh timestamp to the marker so peer sessions refresh.
func (b *Broadcaster) Touch() {
	value := strconv.FormatInt(time.Now().UnixNano(), 10)
	b.mu.Lock()
	b.lastWritten = value
	b.mu.Unlock()
	if err := os.WriteFile(b.path, []byte(value), 0o644); err != nil {
		log.Printf("tabsync: write marker: %v", err)
	}
}

// Watch invokes fn whenever a peer writes the marker, until ctx is done.
// The session's own writes are suppressed by comparing the marker value to
// the last value written here.
func (b *Broadcaster) Watch(ctx context.Context, fn func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(b.path)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(b.path) {
					continue
				}
				if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
					continue
				}
				if b.ownWrite() {
					continue
				}
				fn()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("tabsync: watch: %v", err)
			}
		}
	}()
	return nil
}

func (b *Broadcaster) ownWrite() bool {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(data) == b.lastWritten
}
