package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/weakwords/internal/feed"
	"github.com/verte-zerg/weakwords/internal/kv"
	"github.com/verte-zerg/weakwords/internal/model"
	"github.com/verte-zerg/weakwords/internal/page"
	"github.com/verte-zerg/weakwords/internal/settings"
	"github.com/verte-zerg/weakwords/internal/store"
)

var sentence = []string{"the", "quick", "brown", "fox", "jumps", "over", "the", "lazy", "dog"}

// pageState describes what the page renders; frame turns it into a feed frame.
type pageState struct {
	mode          string
	generation    int
	targets       []string
	active        int
	typed         map[int]int
	incorrect     map[int]bool
	resultVisible bool
}

func newPage(mode string) *pageState {
	return &pageState{mode: mode, targets: sentence, typed: map[int]int{}, incorrect: map[int]bool{}}
}

func (p *pageState) snapshot() page.Snapshot {
	region := &page.WordsRegion{Generation: p.generation}
	for i, target := range p.targets {
		w := page.Word{Index: i, Classes: []string{"word"}}
		if i == p.active {
			w.Classes = append(w.Classes, page.ClassActive)
		}
		for j, r := range target {
			l := page.Letter{Text: string(r)}
			switch {
			case j == 0 && p.incorrect[i]:
				l.Classes = []string{page.ClassIncorrect}
			case j < p.typed[i]:
				l.Classes = []string{"correct"}
			}
			w.Letters = append(w.Letters, l)
		}
		region.Words = append(region.Words, w)
	}
	result := &page.Element{Classes: []string{page.ClassHidden}}
	if p.resultVisible {
		result.Classes = nil
	}
	return page.Snapshot{Mode: p.mode, Words: region, Result: result}
}

func (p *pageState) frame(at float64) feed.Frame {
	snap := p.snapshot()
	return feed.Frame{Kind: feed.KindPage, At: at, Page: &snap}
}

func key(at float64, k string) feed.Frame {
	return feed.Frame{Kind: feed.KindKey, At: at, Key: k}
}

type harness struct {
	store *store.Store
	queue *store.Queue
	cache *settings.Cache
	t     *Tracker
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	backend, err := kv.OpenSQLite(filepath.Join(t.TempDir(), "weakwords.db"), kv.WithPollInterval(10*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	st := store.New(backend, "")
	q := store.NewQueue(st, nil)
	cache := settings.New(st)
	h := &harness{store: st, queue: q, cache: cache}
	h.t = New(DefaultConfig(), QueueRecorder{Queue: q}, cache, nil)
	return h
}

// flush drains the queue and returns the stored record.
func (h *harness) flush(t *testing.T) model.Data {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.queue.Close(ctx))
	data, err := h.store.Get(ctx)
	require.NoError(t, err)
	return data
}

func samples(d model.Data, word string) []float64 {
	if sw, ok := d.SlowWords[word]; ok {
		return sw.Samples
	}
	return nil
}

func TestTracksSpeedAndErrors(t *testing.T) {
	h := newHarness(t)
	p := newPage("time")

	h.t.Start()
	h.t.HandleFrame(p.frame(1000))
	require.True(t, h.t.Machine().Active())

	h.t.HandleFrame(key(1100, "t"))
	p.typed[0] = 1
	h.t.HandleFrame(p.frame(1105))
	h.t.HandleFrame(key(1700, " "))
	p.active = 1
	h.t.HandleFrame(p.frame(1710))

	// No keystroke captured: the frame time is used.
	p.active = 2
	h.t.HandleFrame(p.frame(2900))

	p.incorrect[2] = true
	h.t.HandleFrame(p.frame(3000))
	// Further changes to the same erroneous word are not counted again.
	p.typed[2] = 3
	h.t.HandleFrame(p.frame(3100))

	p.active = 3
	h.t.HandleFrame(p.frame(3500))

	data := h.flush(t)
	require.Len(t, samples(data, "the"), 1)
	assert.InDelta(t, 60, samples(data, "the")[0], 1e-6)
	require.Len(t, samples(data, "quick"), 1)
	assert.InDelta(t, 50, samples(data, "quick")[0], 1e-6)
	assert.InDelta(t, 50, data.SlowWords["quick"].AvgSpeed, 1e-6)
	assert.NotContains(t, data.SlowWords, "brown")
	assert.Equal(t, map[string]int{"brown": 1}, data.ErroredWords)
	assert.NotZero(t, data.LastUpdate)
}

func TestImplausibleDurationWritesNothing(t *testing.T) {
	h := newHarness(t)
	p := newPage("time")
	h.t.Start()
	h.t.HandleFrame(p.frame(1000))
	p.active = 1
	h.t.HandleFrame(p.frame(1100))
	p.active = 2
	h.t.HandleFrame(p.frame(1140))

	assert.Equal(t, 0, h.queue.Pending())
	data := h.flush(t)
	assert.Empty(t, data.SlowWords)
	assert.Zero(t, data.LastUpdate)
}

func TestCustomModeIsSuppressed(t *testing.T) {
	h := newHarness(t)
	p := newPage("custom")
	p.incorrect[0] = true
	h.t.Start()
	h.t.HandleFrame(p.frame(1000))
	p.active = 1
	h.t.HandleFrame(p.frame(1600))
	p.active = 2
	h.t.HandleFrame(p.frame(2200))

	data := h.flush(t)
	assert.Empty(t, data.SlowWords)
	assert.Empty(t, data.ErroredWords)
}

func TestCustomModeTrackedWhenEnabled(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := model.DefaultSettings()
	s.DisableTrackingInCustomMode = false
	require.NoError(t, <-h.queue.Update("settings", store.SaveSettings(s)))
	require.NoError(t, h.cache.Refresh(ctx))

	p := newPage("custom")
	p.incorrect[0] = true
	h.t.Start()
	h.t.HandleFrame(p.frame(1000))
	p.active = 1
	h.t.HandleFrame(p.frame(1500))

	data := h.flush(t)
	assert.Equal(t, map[string]int{"the": 1}, data.ErroredWords)
}

func TestResultMarkerPausesRecording(t *testing.T) {
	h := newHarness(t)
	p := newPage("time")
	h.t.Start()
	h.t.HandleFrame(p.frame(1000))
	first := h.t.Machine().Session()

	p.active = 1
	h.t.HandleFrame(p.frame(1500))
	p.resultVisible = true
	h.t.HandleFrame(p.frame(1600))
	require.False(t, h.t.Machine().Active())

	p.active = 2
	p.incorrect[1] = true
	h.t.HandleFrame(p.frame(2000))

	p.resultVisible = false
	h.t.HandleFrame(p.frame(3000))
	require.True(t, h.t.Machine().Active())
	assert.NotEqual(t, first.ID, h.t.Machine().Session().ID)

	data := h.flush(t)
	assert.Empty(t, data.SlowWords)
	assert.Empty(t, data.ErroredWords)
}

func TestRestartStartsNewSession(t *testing.T) {
	h := newHarness(t)
	p := newPage("time")
	h.t.Start()
	h.t.HandleFrame(p.frame(1000))
	first := h.t.Machine().Session()

	at := 1000.0
	for i := 1; i <= 7; i++ {
		at += 400
		p.active = i
		h.t.HandleFrame(p.frame(at))
	}
	require.Same(t, first, h.t.Machine().Session())

	p.generation++
	p.active = 0
	h.t.HandleFrame(p.frame(at + 100))
	next := h.t.Machine().Session()
	assert.NotSame(t, first, next)
	assert.Equal(t, 0, next.LastActiveIndex)
	assert.Empty(t, next.WordStarts)

	// A short session wrapping to 0 is not a restart.
	p.active = 2
	h.t.HandleFrame(p.frame(at + 500))
	p.generation++
	p.active = 0
	h.t.HandleFrame(p.frame(at + 600))
	assert.Same(t, next, h.t.Machine().Session())
	h.flush(t)
}

func TestWordsRegionReattach(t *testing.T) {
	h := newHarness(t)
	p := newPage("time")
	h.t.Start()
	h.t.HandleFrame(p.frame(1000))
	first := h.t.Machine().Session()

	// Navigating away removes the region; attaching again resets the session.
	h.t.HandleFrame(feed.Frame{Kind: feed.KindPage, At: 2000, Page: &page.Snapshot{Mode: "time"}})
	h.t.HandleFrame(p.frame(2500))
	assert.Same(t, first, h.t.Machine().Session())
	h.t.HandleFrame(p.frame(3000))
	assert.NotSame(t, first, h.t.Machine().Session())
	h.flush(t)
}

func TestRunDecodesFeed(t *testing.T) {
	h := newHarness(t)
	p := newPage("time")

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	frames := []feed.Frame{p.frame(1000), key(1100, "t")}
	p.typed[0] = 1
	frames = append(frames, p.frame(1105), key(1700, " "))
	p.active = 1
	frames = append(frames, p.frame(1705))
	for _, f := range frames {
		require.NoError(t, enc.Encode(f))
	}
	buf.WriteString("{broken\n")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	dec := feed.NewDecoder(&buf, nil)
	require.NoError(t, Run(ctx, h.t, dec, h.cache))

	data := h.flush(t)
	require.Len(t, samples(data, "the"), 1)
	assert.InDelta(t, 60, samples(data, "the")[0], 1e-6)
}
