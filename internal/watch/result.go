package watch

import (
	"log/slog"
	"time"

	"github.com/verte-zerg/weakwords/internal/page"
	"github.com/verte-zerg/weakwords/internal/session"
)

// DefaultResultAttempts bounds attach attempts for the result marker.
const DefaultResultAttempts = 120

// SessionControl is the part of the session machine the result marker drives.
type SessionControl interface {
	Active() bool
	MarkerShown() bool
	MarkerHidden() bool
}

// ResultWatcher ends the session when the result marker becomes visible and
// starts a new one when it is hidden again.
type ResultWatcher struct {
	doc     *page.Document
	machine SessionControl
	clock   session.Clock
	log     *slog.Logger
	obs     *page.Observer
	poll    *Poller
}

// NewResultWatcher returns a detached watcher that makes at most attempts
// attach attempts per Start.
func NewResultWatcher(doc *page.Document, machine SessionControl, clock session.Clock, interval time.Duration, attempts int, logger *slog.Logger) *ResultWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if attempts <= 0 {
		attempts = DefaultResultAttempts
	}
	w := &ResultWatcher{doc: doc, machine: machine, clock: clock, log: logger}
	w.poll = NewPoller(page.RegionResult.String(), interval, attempts, w.tryAttach, logger)
	return w
}

// Start attaches now or begins polling.
func (w *ResultWatcher) Start() bool {
	if w.Attached() {
		return true
	}
	return w.poll.Start(w.clock.Now())
}

// Poll retries attaching when a retry is due.
func (w *ResultWatcher) Poll() bool {
	return w.poll.Poll(w.clock.Now())
}

// Attached reports whether the marker is observed.
func (w *ResultWatcher) Attached() bool {
	return w.obs.Connected()
}

// Stop detaches and cancels polling.
func (w *ResultWatcher) Stop() {
	w.poll.Stop()
	w.obs.Disconnect()
	w.obs = nil
}

func (w *ResultWatcher) tryAttach() bool {
	obs, err := w.doc.Observe(page.RegionResult, w.onMutations)
	if err != nil {
		return false
	}
	w.obs = obs
	if hidden, _ := w.doc.ResultHidden(); !hidden {
		w.machine.MarkerShown()
	}
	return true
}

func (w *ResultWatcher) onMutations(mutations []page.Mutation) {
	for _, m := range mutations {
		switch m.Type {
		case page.MutationRemoved:
			w.log.Debug("result marker removed, polling")
			w.obs = nil
			w.poll.Start(w.clock.Now())
			return
		case page.MutationAttributes:
			if m.Attribute != "class" {
				continue
			}
			hidden, ok := w.doc.ResultHidden()
			if !ok {
				continue
			}
			if !hidden && w.machine.Active() {
				w.machine.MarkerShown()
			} else if hidden && !w.machine.Active() {
				w.machine.MarkerHidden()
			}
		}
	}
}
