package kv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchDelay coalesces bursts of filesystem events for the same key.
var WatchDelay = 100 * time.Millisecond

// Watch streams keys changed on disk by other writers until ctx is cancelled.
// Writes made through this repository are filtered out. Events are dropped
// rather than block when the consumer lags; a later event for the same key
// carries the newer state anyway.
func (r *DiskvRepository) Watch(ctx context.Context) (<-chan Event, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	dirs, err := shardDirs(r.basePath)
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("enumerate store dirs: %w", err)
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	events := make(chan Event, 16)

	var (
		sendMu sync.Mutex
		closed bool
	)

	go func() {
		defer func() {
			sendMu.Lock()
			closed = true
			close(events)
			sendMu.Unlock()
		}()
		defer watcher.Close()

		watched := make(map[string]struct{}, len(dirs))
		for _, dir := range dirs {
			watched[dir] = struct{}{}
		}

		throttle := newKeyThrottle(WatchDelay)
		defer throttle.Stop()

		send := func(key string) {
			v, err := r.Get(ctx, key)
			if err == nil && v != nil && r.ownWrite(key, v) {
				return
			}

			sendMu.Lock()
			defer sendMu.Unlock()
			if closed {
				return
			}
			select {
			case events <- Event{Key: key}:
			default:
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}

				if evt.Op&fsnotify.Create == fsnotify.Create {
					if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
						dir := filepath.Clean(evt.Name)
						if _, found := watched[dir]; !found && filepath.Base(dir) != tempDirName {
							if err := watcher.Add(dir); err == nil {
								watched[dir] = struct{}{}
							}
							// Files may land before the watch is in place.
							if files, err := os.ReadDir(dir); err == nil {
								for _, f := range files {
									if key, ok := keyForFile(filepath.Join(dir, f.Name())); ok {
										throttle.Enqueue(key, send)
									}
								}
							}
						}
						continue
					}
				}

				if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				if key, ok := keyForFile(evt.Name); ok {
					throttle.Enqueue(key, send)
				}
			}
		}
	}()

	return events, nil
}

// shardDirs returns the base directory and every shard below it.
func shardDirs(base string) ([]string, error) {
	dirs := []string{base}
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() || path == base {
			return nil
		}
		if d.Name() == tempDirName {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	return dirs, err
}

// keyThrottle delivers each pending key once per quiet period.
type keyThrottle struct {
	mu      sync.Mutex
	timer   *time.Timer
	pending map[string]struct{}
	delay   time.Duration
}

func newKeyThrottle(delay time.Duration) *keyThrottle {
	return &keyThrottle{delay: delay, pending: make(map[string]struct{})}
}

func (t *keyThrottle) Enqueue(key string, send func(string)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending[key] = struct{}{}
	if t.timer == nil {
		t.timer = time.AfterFunc(t.delay, func() { t.flush(send) })
	}
}

func (t *keyThrottle) flush(send func(string)) {
	t.mu.Lock()
	pending := t.pending
	t.pending = make(map[string]struct{})
	t.timer = nil
	t.mu.Unlock()

	for key := range pending {
		send(key)
	}
}

func (t *keyThrottle) Stop() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()
}
