package player

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

// Fallback passively observes broadcast messages on the embed channel
// and turns them into events. It is the safety net for when the
// structured bridge never comes up: it never sends queries, only the
// event subscriptions, and infers play state both from explicit
// play/pause/finish events and heuristically from playProgress.
//
// Foreign-origin and malformed messages are dropped without logging;
// the channel carries arbitrary cross-document traffic.
type Fallback struct {
	trustedOrigin string
	clock         clockwork.Clock
	emit          func(Event)

	send        func([]byte) error
	lastPlaying *bool
	subscribed  bool
}

func NewFallback(trustedOrigin string, clock clockwork.Clock, emit func(Event)) *Fallback {
	return &Fallback{trustedOrigin: trustedOrigin, clock: clock, emit: emit}
}

// SetSender wires the outbound side of the channel so the listener can
// request event subscriptions once the embedded player reports ready.
func (f *Fallback) SetSender(send func([]byte) error) {
	f.send = send
}

// HandleMessage consumes one raw inbound message.
func (f *Fallback) HandleMessage(msg Message) {
	if !strings.Contains(msg.Origin, f.trustedOrigin) {
		return
	}
	var env inboundEnvelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		return
	}

	now := f.clock.Now()
	switch env.Event {
	case "ready":
		f.emit(Event{Kind: EventReady, Source: SourceFallback, Position: -1, ObservedAt: now})
		f.subscribe()
	case "play":
		f.setPlaying(true, EventPlay, now)
	case "pause":
		f.setPlaying(false, EventPause, now)
	case "finish":
		f.setPlaying(false, EventEnded, now)
	case "playProgress":
		var p progressData
		if env.Data == nil || json.Unmarshal(env.Data, &p) != nil {
			return
		}
		f.emit(Event{
			Kind:       EventTimeUpdate,
			Source:     SourceFallback,
			Position:   p.Seconds,
			Duration:   p.Duration,
			ObservedAt: now,
		})
		// Progress ticks double as play detection when the explicit
		// play event was missed.
		if p.Percent > 0 && p.Percent < 0.999 {
			f.setPlaying(true, EventPlay, now)
		}
	}
}

// setPlaying emits a transition only when it differs from the last
// known state, so a repeated identical signal is a no-op.
func (f *Fallback) setPlaying(playing bool, kind EventKind, now time.Time) {
	if f.lastPlaying != nil && *f.lastPlaying == playing {
		return
	}
	f.lastPlaying = &playing
	f.emit(Event{Kind: kind, Source: SourceFallback, Position: -1, ObservedAt: now})
}

func (f *Fallback) subscribe() {
	if f.subscribed || f.send == nil {
		return
	}
	f.subscribed = true
	for _, name := range []string{"play", "pause", "finish", "playProgress"} {
		payload, err := json.Marshal(outboundCommand{Method: "addEventListener", Value: name})
		if err != nil {
			continue
		}
		_ = f.send(payload)
	}
}
