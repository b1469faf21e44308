package session

import (
	"time"
	"unicode/utf8"
)

// Accepted word durations. Anything at or below the floor is noise; anything
// above the ceiling is a pause.
const (
	MinWordDuration = 50 * time.Millisecond
	MaxWordDuration = 3000 * time.Millisecond
)

// WPM returns the typing speed for target typed in d, counting five runes as
// one word.
func WPM(target string, d time.Duration) float64 {
	minutes := d.Minutes()
	if minutes <= 0 {
		return 0
	}
	return (float64(utf8.RuneCountInString(target)) / 5) / minutes
}

// Keystrokes captures key presses between batches.
type Keystrokes struct {
	pending    Timestamp
	hasPending bool
}

// Key handles one key press while the session records. A space keeps its
// timestamp for the next timing check; the first other key on word 0 marks
// when that word started.
func (k *Keystrokes) Key(m *Machine, doc Slots, key string, ts Timestamp) {
	if !m.Active() {
		return
	}
	if key == " " {
		k.pending = ts
		k.hasPending = true
		return
	}
	slot, ok := doc.ActiveSlot()
	if !ok || slot.Index != 0 {
		return
	}
	s := m.Session()
	if _, started := s.WordStarts[0]; !started {
		s.WordStarts[0] = ts
	}
}

func (k *Keystrokes) take() (Timestamp, bool) {
	ts, ok := k.pending, k.hasPending
	k.pending, k.hasPending = 0, false
	return ts, ok
}

// TimingEngine measures how long each word took and records the speed.
type TimingEngine struct {
	keys  *Keystrokes
	clock Clock
	rec   Recorder
}

// NewTimingEngine returns an engine reading the pending space timestamp from
// keys and falling back to clock.
func NewTimingEngine(keys *Keystrokes, clock Clock, rec Recorder) *TimingEngine {
	return &TimingEngine{keys: keys, clock: clock, rec: rec}
}

// Check processes one batch.
func (e *TimingEngine) Check(s *Session, doc Slots) {
	pending, hasPending := e.keys.take()

	slot, ok := doc.ActiveSlot()
	if !ok || slot.Index < 0 {
		return
	}

	transition := slot.Index != s.LastActiveIndex && s.LastActiveIndex >= 0
	ts := e.clock.Now()
	if transition && hasPending {
		ts = pending
	}
	if transition {
		e.finish(s, doc, ts)
	}

	if slot.Index != 0 {
		if _, started := s.WordStarts[slot.Index]; !started {
			s.WordStarts[slot.Index] = ts
		}
	}
	s.LastActiveIndex = slot.Index
}

// finish records the word the cursor just left.
func (e *TimingEngine) finish(s *Session, doc Slots, ts Timestamp) {
	prev := s.LastActiveIndex
	start, ok := s.WordStarts[prev]
	if !ok {
		return
	}
	slot, ok := doc.SlotAt(prev)
	if !ok || slot.Target == "" {
		return
	}
	d := ts.Sub(start)
	if d <= MinWordDuration || d > MaxWordDuration {
		return
	}
	if _, errored := s.Errored[SlotKey{Index: prev, Text: slot.Target}]; errored {
		return
	}
	wpm := WPM(slot.Target, d)
	s.SlowWords[slot.Target] = append(s.SlowWords[slot.Target], wpm)
	e.rec.RecordSlowWord(slot.Target, wpm)
}
