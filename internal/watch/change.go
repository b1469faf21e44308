package watch

import (
	"log/slog"
	"time"

	"github.com/verte-zerg/weakwords/internal/page"
	"github.com/verte-zerg/weakwords/internal/session"
)

// Batch summarizes one mutation batch from the words region.
type Batch struct {
	// Check is set when any record is a class change or a child-list change.
	Check bool
	// ContainerChanged is set when the container's own children changed.
	ContainerChanged bool
	Mutations        []page.Mutation
}

// Summarize classifies a batch.
func Summarize(mutations []page.Mutation) Batch {
	b := Batch{Mutations: mutations}
	for _, m := range mutations {
		switch m.Type {
		case page.MutationAttributes:
			if m.Attribute == "class" {
				b.Check = true
			}
		case page.MutationChildList:
			b.Check = true
			if m.Target.Kind == page.NodeContainer {
				b.ContainerChanged = true
			}
		}
	}
	return b
}

// ChangeHandler receives words-region events.
type ChangeHandler interface {
	// Attached is called each time the watcher attaches to a words region.
	Attached()
	// Batch is called for each mutation batch while attached.
	Batch(Batch)
}

// ChangeWatcher observes the words region. While the region is absent it
// polls without limit; when the region disappears it detaches and polls again.
type ChangeWatcher struct {
	doc     *page.Document
	handler ChangeHandler
	clock   session.Clock
	log     *slog.Logger
	obs     *page.Observer
	poll    *Poller
}

// NewChangeWatcher returns a detached watcher. Call Start to attach.
func NewChangeWatcher(doc *page.Document, handler ChangeHandler, clock session.Clock, interval time.Duration, logger *slog.Logger) *ChangeWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	w := &ChangeWatcher{doc: doc, handler: handler, clock: clock, log: logger}
	w.poll = NewPoller(page.RegionWords.String(), interval, 0, w.tryAttach, logger)
	return w
}

// Start attaches now or begins polling.
func (w *ChangeWatcher) Start() bool {
	if w.Attached() {
		return true
	}
	return w.poll.Start(w.clock.Now())
}

// Poll retries attaching when a retry is due.
func (w *ChangeWatcher) Poll() bool {
	return w.poll.Poll(w.clock.Now())
}

// Attached reports whether the watcher is observing a words region.
func (w *ChangeWatcher) Attached() bool {
	return w.obs.Connected()
}

// Stop detaches and cancels polling.
func (w *ChangeWatcher) Stop() {
	w.poll.Stop()
	w.obs.Disconnect()
	w.obs = nil
}

func (w *ChangeWatcher) tryAttach() bool {
	obs, err := w.doc.Observe(page.RegionWords, w.onMutations)
	if err != nil {
		return false
	}
	w.obs = obs
	w.handler.Attached()
	return true
}

func (w *ChangeWatcher) onMutations(mutations []page.Mutation) {
	if len(mutations) > 0 && mutations[0].Type == page.MutationRemoved {
		w.log.Debug("words region removed, polling")
		w.obs = nil
		w.poll.Start(w.clock.Now())
		return
	}
	w.handler.Batch(Summarize(mutations))
}
