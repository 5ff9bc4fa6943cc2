// Package session owns the watch-session lifecycle: a per-(user, video)
// state machine that accumulates engaged watch time, persists capped
// progress snapshots to the session backend, and drives resume prompts.
package session

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Accumulator integrates wall-clock time into a monotonic watched
// counter, gated strictly on the normalized playing state. It is
// deliberately decoupled from the playhead: rewatching a segment after
// seeking backward still accumulates time.
//
// Owned by the Manager; not safe for concurrent use.
type Accumulator struct {
	clock    clockwork.Clock
	playing  bool
	baseline time.Time
	watched  float64
	duration float64
	capped   bool
}

func NewAccumulator(clock clockwork.Clock) *Accumulator {
	return &Accumulator{clock: clock}
}

// SetPlaying flips the gate. Entering the playing state records a fresh
// baseline; leaving it folds in the time since the last tick so the
// final partial interval is not lost.
func (a *Accumulator) SetPlaying(playing bool) {
	if a.playing == playing {
		return
	}
	if playing {
		a.baseline = a.clock.Now()
	} else {
		a.fold()
	}
	a.playing = playing
}

// Tick adds the wall-clock delta since the last tick while playing.
// Once the counter hits a known duration it stays there and ticking is
// suspended until Reset.
func (a *Accumulator) Tick() {
	if !a.playing || a.capped {
		return
	}
	a.fold()
}

func (a *Accumulator) fold() {
	if a.baseline.IsZero() || a.capped {
		return
	}
	now := a.clock.Now()
	a.watched += now.Sub(a.baseline).Seconds()
	a.baseline = now
	a.applyCap()
}

func (a *Accumulator) applyCap() {
	if a.duration > 0 && a.watched >= a.duration {
		a.watched = a.duration
		a.capped = true
	}
}

// SetDuration records the video duration once known. The counter is
// re-capped immediately in case it had already overshot.
func (a *Accumulator) SetDuration(seconds float64) {
	if seconds <= 0 {
		return
	}
	a.duration = seconds
	a.applyCap()
}

// Reset seeds the counter (0 for a fresh session, the server-confirmed
// value on resume) and rebases the baseline to now. The baseline is
// never re-derived from a stale timestamp.
func (a *Accumulator) Reset(seed float64) {
	if seed < 0 {
		seed = 0
	}
	a.watched = seed
	a.capped = false
	a.baseline = a.clock.Now()
	a.applyCap()
}

func (a *Accumulator) Watched() float64 { return a.watched }

func (a *Accumulator) Capped() bool { return a.capped }
