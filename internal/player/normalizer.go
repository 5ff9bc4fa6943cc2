package player

import "time"

// Normalizer folds producer events into a single State. Events are
// applied in ObservedAt order: a play-state transition whose timestamp
// is older than the last applied transition is discarded as stale, so
// near-simultaneous conflicting producers are resolved by timestamp
// rather than by whichever callback happened to run last. A repeated
// identical play state is a no-op regardless of producer.
//
// Normalizer is not safe for concurrent use; the session manager owns
// it and feeds it from a single goroutine.
type Normalizer struct {
	state        State
	lastChangeAt time.Time
}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

func (n *Normalizer) State() State {
	return n.state
}

// Apply folds one event into the state and reports whether the play
// state changed.
func (n *Normalizer) Apply(ev Event) (State, bool) {
	n.absorbTiming(ev)

	switch ev.Kind {
	case EventReady:
		n.state.Ready = true
		return n.state, false
	case EventPlay:
		return n.applyPlaying(ev, true)
	case EventPause, EventEnded:
		return n.applyPlaying(ev, false)
	case EventSeeked, EventTimeUpdate:
		return n.state, false
	default:
		return n.state, false
	}
}

func (n *Normalizer) applyPlaying(ev Event, playing bool) (State, bool) {
	if n.state.Playing == playing {
		return n.state, false
	}
	// Stale: an already-applied transition postdates this event.
	if !n.lastChangeAt.IsZero() && ev.ObservedAt.Before(n.lastChangeAt) {
		return n.state, false
	}
	n.state.Playing = playing
	n.lastChangeAt = ev.ObservedAt
	return n.state, true
}

func (n *Normalizer) absorbTiming(ev Event) {
	if ev.Duration > 0 {
		n.state.Duration = ev.Duration
	}
	if ev.Position >= 0 && (ev.Kind == EventTimeUpdate || ev.Kind == EventSeeked) {
		n.state.Position = ev.Position
	}
	// Position never exceeds a known duration; producers are not trusted.
	if n.state.Duration > 0 && n.state.Position > n.state.Duration {
		n.state.Position = n.state.Duration
	}
}

// Reset clears all normalized state, for when the video identity changes.
func (n *Normalizer) Reset() {
	n.state = State{}
	n.lastChangeAt = time.Time{}
}
