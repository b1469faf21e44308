// Package watch attaches to regions of the observed page and turns their
// mutation batches into session events.
package watch

import (
	"log/slog"
	"time"

	"github.com/verte-zerg/weakwords/internal/session"
)

// DefaultAttachInterval is the delay between attach attempts.
const DefaultAttachInterval = time.Second

// Poller retries an attach attempt on a fixed interval of page time. The page
// only changes when a frame arrives, so the caller polls once per frame and an
// attempt runs when the interval since the previous one has elapsed.
type Poller struct {
	name     string
	interval time.Duration
	max      int
	attempt  func() bool
	log      *slog.Logger

	pending  bool
	due      session.Timestamp
	attempts int
}

// NewPoller returns an idle poller. maxAttempts bounds the number of attempts
// per Start; zero retries forever.
func NewPoller(name string, interval time.Duration, maxAttempts int, attempt func() bool, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultAttachInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{name: name, interval: interval, max: maxAttempts, attempt: attempt, log: logger}
}

// Start tries once immediately and keeps retrying while the attempt fails.
func (p *Poller) Start(now session.Timestamp) bool {
	p.Stop()
	p.attempts = 0
	return p.try(now)
}

// Poll runs the scheduled attempt if it is due.
func (p *Poller) Poll(now session.Timestamp) bool {
	if !p.pending || now < p.due {
		return false
	}
	p.pending = false
	return p.try(now)
}

// Pending reports whether a retry is scheduled.
func (p *Poller) Pending() bool {
	return p.pending
}

// Stop cancels the scheduled retry, if any.
func (p *Poller) Stop() {
	p.pending = false
}

func (p *Poller) try(now session.Timestamp) bool {
	p.attempts++
	if p.attempt() {
		p.log.Debug("attached", "region", p.name, "attempts", p.attempts)
		return true
	}
	if p.max > 0 && p.attempts >= p.max {
		p.log.Warn("giving up attaching", "region", p.name, "attempts", p.attempts)
		return false
	}
	p.pending = true
	p.due = now + session.Timestamp(p.interval)
	return false
}
