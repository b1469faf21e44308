package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Dir stores each key as a JSON file inside one directory. Writes are atomic
// (temp file + rename), so readers in other processes never observe a torn
// value.
type Dir struct {
	root string
	opts options

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// OpenDir opens the directory store rooted at root, creating it if needed.
func OpenDir(root string, opts ...Option) (*Dir, error) {
	if root == "" {
		return nil, fmt.Errorf("kv: directory is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Dir{
		root: root,
		opts: buildOptions(opts),
		done: make(chan struct{}),
	}, nil
}

func (d *Dir) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("kv: invalid key %q", key)
	}
	return filepath.Join(d.root, key+".json"), nil
}

// Get returns the value stored under key.
func (d *Dir) Get(_ context.Context, key string) ([]byte, error) {
	path, err := d.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Set replaces the value stored under key.
func (d *Dir) Set(_ context.Context, key string, value []byte) error {
	path, err := d.path(key)
	if err != nil {
		return err
	}
	tmpFile, err := os.CreateTemp(d.root, key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("kv: create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmpFile.Write(value); err != nil {
		return fmt.Errorf("kv: write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("kv: sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("kv: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("kv: replace value: %w", err)
	}
	return nil
}

// Delete removes the value under key. Deleting a missing key is not an error.
func (d *Dir) Delete(_ context.Context, key string) error {
	path, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Watch reports changes to key's file. Bursts of events (a rename produces
// several) are coalesced by a debounce timer; each new event stops the
// pending timer and starts a fresh one.
func (d *Dir) Watch(ctx context.Context, key string) (<-chan struct{}, error) {
	path, err := d.path(key)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("kv: create watcher: %w", err)
	}
	if err := watcher.Add(d.root); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("kv: watch directory: %w", err)
	}

	ch := make(chan struct{}, 1)
	fire := make(chan struct{}, 1)
	name := filepath.Base(path)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer close(ch)
		defer func() {
			if cerr := watcher.Close(); cerr != nil {
				// Best-effort watcher close.
				_ = cerr
			}
		}()

		var debounceTimer *time.Timer
		defer func() {
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-d.done:
				return
			case <-fire:
				notify(ch)
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != name {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(d.opts.debounce, func() {
					notify(fire)
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				d.opts.logger.Warn("kv watch", "key", key, "error", err)
			}
		}
	}()
	return ch, nil
}

// Close stops all watchers.
func (d *Dir) Close() error {
	d.closeOnce.Do(func() {
		close(d.done)
	})
	d.wg.Wait()
	return nil
}
