// Package settings keeps an in-memory copy of the stored settings for the
// tracking hot path.
package settings

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/verte-zerg/weakwords/internal/model"
)

// DefaultCustomMode is the practice mode name tracking can be disabled in.
const DefaultCustomMode = "custom"

// Source reads the record and reports changes to it.
type Source interface {
	Get(ctx context.Context) (model.Data, error)
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// Cache holds the last settings read from the store. Settings never blocks.
type Cache struct {
	src        Source
	customMode string
	log        *slog.Logger
	cur        atomic.Pointer[model.Settings]
}

// Option configures a Cache.
type Option func(*Cache)

// WithCustomMode sets the mode name that counts as custom practice.
func WithCustomMode(mode string) Option {
	return func(c *Cache) {
		if mode != "" {
			c.customMode = mode
		}
	}
}

// WithLogger sets the logger for refresh failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

// New returns a cache that reports the defaults until the first refresh.
func New(src Source, opts ...Option) *Cache {
	c := &Cache{src: src, customMode: DefaultCustomMode, log: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Settings returns the cached settings.
func (c *Cache) Settings() model.Settings {
	if s := c.cur.Load(); s != nil {
		return *s
	}
	return model.DefaultSettings()
}

// Refresh reads the store. On failure the previous settings stay in place.
func (c *Cache) Refresh(ctx context.Context) error {
	data, err := c.src.Get(ctx)
	if err != nil {
		return err
	}
	s := data.Settings
	c.cur.Store(&s)
	return nil
}

// Run refreshes once and then again after every change notification, until
// ctx ends.
func (c *Cache) Run(ctx context.Context) error {
	changes, err := c.src.Watch(ctx)
	if err != nil {
		return err
	}
	c.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			c.refresh(ctx)
		}
	}
}

func (c *Cache) refresh(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
		c.log.Warn("settings refresh failed", "error", err)
	}
}

// Suppressed reports whether tracking is off for the given practice mode.
func (c *Cache) Suppressed(mode string) bool {
	return mode == c.customMode && c.Settings().DisableTrackingInCustomMode
}
