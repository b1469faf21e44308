// Package kv provides the host key-value stores the aggregate record lives in.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("kv: key not found")

// KV is a key-value store that can report changes to a key.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Watch delivers a notification whenever the value under key changes.
	// Notifications coalesce: one pending signal stands for any number of
	// changes. The channel is closed when ctx is done or the store closes.
	Watch(ctx context.Context, key string) (<-chan struct{}, error)
	Close() error
}

// notify performs a non-blocking send on a coalescing channel.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
