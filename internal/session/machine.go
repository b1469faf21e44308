package session

import (
	"log/slog"
	"time"
)

// DefaultRestartThreshold is the last active index a session must have passed
// before a jump back to index 0 counts as a new attempt.
const DefaultRestartThreshold = 5

// State is the recording state of the machine.
type State int

// Machine states.
const (
	Idle State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

// Machine owns the current Session and switches between Idle and Active.
type Machine struct {
	threshold int
	now       func() time.Time
	log       *slog.Logger

	state State
	sess  *Session
}

// NewMachine returns an Idle machine with an empty session. A threshold below
// zero falls back to DefaultRestartThreshold.
func NewMachine(threshold int, logger *slog.Logger) *Machine {
	if threshold < 0 {
		threshold = DefaultRestartThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Machine{threshold: threshold, now: time.Now, log: logger}
	m.sess = newSession(m.now())
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Active reports whether batches should be recorded.
func (m *Machine) Active() bool {
	return m.state == Active
}

// Session returns the current session.
func (m *Machine) Session() *Session {
	return m.sess
}

// Reset discards the current session and starts recording a fresh one.
func (m *Machine) Reset() {
	m.start("reset")
}

// DetectSessionStart starts a new session when the active slot wrapped back to
// index 0 after the previous session passed the restart threshold.
func (m *Machine) DetectSessionStart(activeIndex int) bool {
	if activeIndex != 0 || m.sess.LastActiveIndex <= m.threshold {
		return false
	}
	m.start("restart")
	return true
}

// MarkerShown stops recording when the result marker appears.
func (m *Machine) MarkerShown() bool {
	if m.state != Active {
		return false
	}
	m.state = Idle
	m.log.Debug("session ended", "session", m.sess.ID, "last_index", m.sess.LastActiveIndex)
	return true
}

// MarkerHidden starts a fresh session when the result marker is hidden again.
func (m *Machine) MarkerHidden() bool {
	if m.state != Idle {
		return false
	}
	m.start("result hidden")
	return true
}

func (m *Machine) start(reason string) {
	m.sess = newSession(m.now())
	m.state = Active
	m.log.Debug("session started", "session", m.sess.ID, "reason", reason)
}
