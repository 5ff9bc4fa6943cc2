package player

import "github.com/jonboulle/clockwork"

// Native adapts a native media element's own callbacks into events.
// Native callbacks are authoritative and need no reconciliation; this
// type only stamps and forwards them.
type Native struct {
	clock clockwork.Clock
	emit  func(Event)
}

func NewNative(clock clockwork.Clock, emit func(Event)) *Native {
	return &Native{clock: clock, emit: emit}
}

func (n *Native) OnReady(duration float64) {
	n.emit(Event{Kind: EventReady, Source: SourceNative, Position: -1, Duration: duration, ObservedAt: n.clock.Now()})
}

func (n *Native) OnPlay() {
	n.emit(Event{Kind: EventPlay, Source: SourceNative, Position: -1, ObservedAt: n.clock.Now()})
}

func (n *Native) OnPause() {
	n.emit(Event{Kind: EventPause, Source: SourceNative, Position: -1, ObservedAt: n.clock.Now()})
}

func (n *Native) OnEnded() {
	n.emit(Event{Kind: EventEnded, Source: SourceNative, Position: -1, ObservedAt: n.clock.Now()})
}

func (n *Native) OnSeeked(position float64) {
	n.emit(Event{Kind: EventSeeked, Source: SourceNative, Position: position, ObservedAt: n.clock.Now()})
}

func (n *Native) OnTimeUpdate(position, duration float64) {
	n.emit(Event{Kind: EventTimeUpdate, Source: SourceNative, Position: position, Duration: duration, ObservedAt: n.clock.Now()})
}
