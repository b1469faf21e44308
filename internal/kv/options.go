package kv

import (
	"log/slog"
	"time"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultDebounce     = 80 * time.Millisecond
)

type options struct {
	pollInterval time.Duration
	debounce     time.Duration
	logger       *slog.Logger
}

// Option configures a store.
type Option func(*options)

// WithPollInterval sets how often the SQLite store checks for changes.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithDebounce sets how long the directory store waits for a burst of
// file-system events to settle before notifying.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithLogger sets the logger used for background watch errors.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		pollInterval: defaultPollInterval,
		debounce:     defaultDebounce,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
