// Package player normalizes playback signals from redundant producers
// (an embedded player reachable over a cross-document channel, a passive
// message listener on the same channel, and a native media element) into
// one canonical playback state.
package player

import "time"

type EventKind int

const (
	EventReady EventKind = iota
	EventPlay
	EventPause
	EventSeeked
	EventTimeUpdate
	EventEnded
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventSeeked:
		return "seeked"
	case EventTimeUpdate:
		return "timeupdate"
	case EventEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Event is a single playback signal from one producer. Position and
// Duration are in seconds; negative values mean "not reported".
type Event struct {
	Kind       EventKind
	Source     string
	Position   float64
	Duration   float64
	ObservedAt time.Time
}

// State is the canonical playback snapshot derived by the Normalizer.
type State struct {
	Playing  bool
	Position float64
	Duration float64
	Ready    bool
}

// Producer source names used in emitted events.
const (
	SourceBridge   = "bridge"
	SourceFallback = "fallback"
	SourceNative   = "native"
)
