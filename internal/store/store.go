// Package store reads and writes the aggregate record and serializes updates
// to it.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/verte-zerg/weakwords/internal/kv"
	"github.com/verte-zerg/weakwords/internal/model"
)

// Store wraps a key-value store holding the aggregate record under one key.
type Store struct {
	kv  kv.KV
	key string
	now func() time.Time
}

// New returns a Store for key. An empty key selects model.DefaultKey.
func New(backend kv.KV, key string) *Store {
	if key == "" {
		key = model.DefaultKey
	}
	return &Store{kv: backend, key: key, now: time.Now}
}

// Key returns the record key.
func (s *Store) Key() string {
	return s.key
}

// Get reads the record. A missing record yields the defaults; a stored record
// is decoded on top of the defaults, so absent fields keep their default.
func (s *Store) Get(ctx context.Context) (model.Data, error) {
	data := model.DefaultData()
	raw, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, kv.ErrNotFound) {
		return data, nil
	}
	if err != nil {
		return model.Data{}, fmt.Errorf("store: read %s: %w", s.key, err)
	}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return model.Data{}, fmt.Errorf("store: decode %s: %w", s.key, err)
	}
	data.Normalize()
	return data, nil
}

// Set writes the whole record.
func (s *Store) Set(ctx context.Context, data model.Data) error {
	data.Normalize()
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", s.key, err)
	}
	if err := s.kv.Set(ctx, s.key, raw); err != nil {
		return fmt.Errorf("store: write %s: %w", s.key, err)
	}
	return nil
}

// Clear removes the record; the next Get returns the defaults.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("store: clear %s: %w", s.key, err)
	}
	return nil
}

// Watch forwards change notifications for the record key.
func (s *Store) Watch(ctx context.Context) (<-chan struct{}, error) {
	return s.kv.Watch(ctx, s.key)
}
