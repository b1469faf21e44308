// Package session turns mutation batches and keystrokes from the observed
// page into per-word timing samples and error events.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/weakwords/internal/page"
)

// Timestamp is a point on the page's high-resolution clock, measured from the
// page's time origin.
type Timestamp time.Duration

// Millis converts a page clock reading in milliseconds.
func Millis(ms float64) Timestamp {
	return Timestamp(ms * float64(time.Millisecond))
}

// Sub returns t-u.
func (t Timestamp) Sub(u Timestamp) time.Duration {
	return time.Duration(t - u)
}

// Clock supplies the fallback timestamp for a word transition.
type Clock interface {
	Now() Timestamp
}

// FrameClock reports the latest page clock reading seen in the feed. It never
// moves backwards, so a late frame cannot produce a negative duration.
type FrameClock struct {
	now Timestamp
}

// Set advances the clock to ts.
func (c *FrameClock) Set(ts Timestamp) {
	if ts > c.now {
		c.now = ts
	}
}

// Now returns the latest reading.
func (c *FrameClock) Now() Timestamp {
	return c.now
}

// SlotKey identifies one word slot within a session.
type SlotKey struct {
	Index int
	Text  string
}

// Session holds the state of one practice attempt. It is never persisted.
type Session struct {
	ID              string
	StartedAt       time.Time
	LastActiveIndex int
	WordStarts      map[int]Timestamp
	Errored         map[SlotKey]struct{}
	SlowWords       map[string][]float64
}

func newSession(now time.Time) *Session {
	return &Session{
		ID:              uuid.NewString(),
		StartedAt:       now,
		LastActiveIndex: -1,
		WordStarts:      map[int]Timestamp{},
		Errored:         map[SlotKey]struct{}{},
		SlowWords:       map[string][]float64{},
	}
}

// Slots is the read-only view of the rendered words the engines need.
type Slots interface {
	ActiveSlot() (page.WordSlot, bool)
	SlotAt(index int) (page.WordSlot, bool)
	Slots() []page.WordSlot
}

// Recorder receives the events a session produces.
type Recorder interface {
	RecordSlowWord(word string, wpm float64)
	RecordError(word string)
}
