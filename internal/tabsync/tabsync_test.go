package tabsync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeerWriteTriggersWatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync-marker")
	writer, err := New(path)
	require.NoError(t, err)
	reader, err := New(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	triggered := make(chan struct{}, 4)
	require.NoError(t, reader.Watch(ctx, func() { triggered <- struct{}{} }))

	// Give the watcher a beat to register before writing.
	time.Sleep(100 * time.Millisecond)
	writer.Touch()

	select {
	case <-triggered:
	case <-time.After(3 * time.Second):
		t.Fatal("peer write did not trigger the watcher")
	}
}

func TestOwnWriteIsSuppressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync-marker")
	b, err := New(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	triggered := make(chan struct{}, 4)
	require.NoError(t, b.Watch(ctx, func() { triggered <- struct{}{} }))

	time.Sleep(100 * time.Millisecond)
	b.Touch()

	select {
	case <-triggered:
		t.Fatal("a session must not refresh on its own marker write")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatchStopsOnContextCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync-marker")
	writer, err := New(path)
	require.NoError(t, err)
	reader, err := New(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	triggered := make(chan struct{}, 4)
	require.NoError(t, reader.Watch(ctx, func() { triggered <- struct{}{} }))

	cancel()
	time.Sleep(100 * time.Millisecond)
	writer.Touch()

	select {
	case <-triggered:
		t.Fatal("watcher fired after teardown")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestTouchCreatesMarkerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "sync-marker")
	b, err := New(path)
	require.NoError(t, err)
	b.Touch()
	assert.FileExists(t, path)
}
