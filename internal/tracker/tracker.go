// Package tracker runs the single logical thread that applies feed frames to
// the observed page and turns them into store updates.
package tracker

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/weakwords/internal/feed"
	"github.com/verte-zerg/weakwords/internal/page"
	"github.com/verte-zerg/weakwords/internal/session"
	"github.com/verte-zerg/weakwords/internal/settings"
	"github.com/verte-zerg/weakwords/internal/store"
	"github.com/verte-zerg/weakwords/internal/watch"
)

// Config tunes session detection and attach retries.
type Config struct {
	RestartThreshold     int
	AttachInterval       time.Duration
	ResultAttachAttempts int
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		RestartThreshold:     session.DefaultRestartThreshold,
		AttachInterval:       watch.DefaultAttachInterval,
		ResultAttachAttempts: watch.DefaultResultAttempts,
	}
}

// Tracker owns the page model and the session. It is not safe for concurrent
// use: HandleFrame and Loop must run on one goroutine.
type Tracker struct {
	doc      *page.Document
	clock    *session.FrameClock
	machine  *session.Machine
	keys     *session.Keystrokes
	timing   *session.TimingEngine
	errs     *session.ErrorDetector
	words    *watch.ChangeWatcher
	result   *watch.ResultWatcher
	settings *settings.Cache
	log      *slog.Logger

	frames int
}

// New wires a tracker reporting to rec and consulting cache on every batch.
func New(cfg Config, rec session.Recorder, cache *settings.Cache, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		doc:      page.NewDocument(),
		clock:    &session.FrameClock{},
		machine:  session.NewMachine(cfg.RestartThreshold, logger),
		keys:     &session.Keystrokes{},
		settings: cache,
		log:      logger,
	}
	t.timing = session.NewTimingEngine(t.keys, t.clock, rec)
	t.errs = session.NewErrorDetector(rec)
	t.words = watch.NewChangeWatcher(t.doc, wordsHandler{t}, t.clock, cfg.AttachInterval, logger)
	t.result = watch.NewResultWatcher(t.doc, t.machine, t.clock, cfg.AttachInterval, cfg.ResultAttachAttempts, logger)
	return t
}

// Machine exposes the session state machine.
func (t *Tracker) Machine() *session.Machine {
	return t.machine
}

// Start attaches both watchers or schedules their retries.
func (t *Tracker) Start() {
	t.words.Start()
	t.result.Start()
}

// Stop detaches both watchers.
func (t *Tracker) Stop() {
	t.words.Stop()
	t.result.Stop()
}

// HandleFrame applies one frame. Mutation batches are processed before it
// returns.
func (t *Tracker) HandleFrame(f feed.Frame) {
	t.frames++
	ts := session.Millis(f.At)
	t.clock.Set(ts)
	switch f.Kind {
	case feed.KindPage:
		if f.Page == nil {
			return
		}
		t.doc.Apply(*f.Page)
	case feed.KindKey:
		t.keys.Key(t.machine, t.doc, f.Key, ts)
	}
	t.words.Poll()
	t.result.Poll()
}

// Loop handles frames until the channel closes or ctx ends.
func (t *Tracker) Loop(ctx context.Context, frames <-chan feed.Frame) error {
	t.Start()
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-frames:
			if !ok {
				t.log.Debug("feed ended", "frames", t.frames)
				return nil
			}
			t.HandleFrame(f)
		}
	}
}

func (t *Tracker) onBatch(b watch.Batch) {
	if b.ContainerChanged {
		if slot, ok := t.doc.ActiveSlot(); ok {
			t.machine.DetectSessionStart(slot.Index)
		}
	}
	if !b.Check || !t.machine.Active() {
		return
	}
	if t.settings != nil && t.settings.Suppressed(t.doc.Mode()) {
		return
	}
	s := t.machine.Session()
	t.errs.Check(s, t.doc)
	t.timing.Check(s, t.doc)
}

type wordsHandler struct{ t *Tracker }

func (h wordsHandler) Attached() { h.t.machine.Reset() }

func (h wordsHandler) Batch(b watch.Batch) { h.t.onBatch(b) }

// QueueRecorder submits session events to the update queue without waiting
// for them; the queue logs failures.
type QueueRecorder struct {
	Queue *store.Queue
}

// RecordSlowWord implements session.Recorder.
func (r QueueRecorder) RecordSlowWord(word string, wpm float64) {
	r.Queue.Update("record slow word", store.RecordSlowWord(word, wpm))
}

// RecordError implements session.Recorder.
func (r QueueRecorder) RecordError(word string) {
	r.Queue.Update("record error", store.RecordError(word))
}

// Run decodes frames from dec and tracks them until the feed ends or ctx is
// cancelled, keeping cache fresh meanwhile. The caller closes the queue
// afterwards to flush pending updates.
func Run(ctx context.Context, t *Tracker, dec *feed.Decoder, cache *settings.Cache) error {
	g, gctx := errgroup.WithContext(ctx)
	frames := make(chan feed.Frame, 64)

	// The decoder may block on a read that ignores ctx, so it stays outside
	// the group and reports through feedErr.
	feedErr := make(chan error, 1)
	go func() { feedErr <- dec.Stream(gctx, frames) }()

	settingsCtx, stopSettings := context.WithCancel(gctx)
	if cache != nil {
		g.Go(func() error { return cache.Run(settingsCtx) })
	}
	g.Go(func() error {
		defer stopSettings()
		if err := t.Loop(gctx, frames); err != nil {
			return err
		}
		if gctx.Err() != nil {
			return nil
		}
		return <-feedErr
	})
	return g.Wait()
}
