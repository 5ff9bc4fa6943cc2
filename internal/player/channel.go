package player

import (
	"encoding/json"
	"errors"
)

// Message is one inbound cross-document message with its origin.
type Message struct {
	Origin string
	Data   []byte
}

// Channel is the cross-document message transport to the embedded
// player. Send delivers a JSON payload to the embedded side; Messages
// yields everything broadcast back, trusted or not.
type Channel interface {
	Send(data []byte) error
	Messages() <-chan Message
}

// Locator finds the embedded player's channel. The embedded content may
// not exist yet (or ever); Locate reports false until it does.
type Locator interface {
	Locate() (Channel, bool)
}

var ErrChannelUnavailable = errors.New("player: embed channel not located")

// Wire protocol with the embedded player.
//
// Outbound: {"method": "...", "value": ...} with methods addEventListener,
// play, pause, setCurrentTime, getCurrentTime, getDuration, getPaused.
// Inbound: {"event": "...", "data": {...}} for subscribed events, or
// {"method": "...", "value": ...} echoing a query with its result.
type outboundCommand struct {
	Method string `json:"method"`
	Value  any    `json:"value,omitempty"`
}

type inboundEnvelope struct {
	Event  string          `json:"event,omitempty"`
	Method string          `json:"method,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
	Value  json.RawMessage `json:"value,omitempty"`
}

type progressData struct {
	Seconds  float64 `json:"seconds"`
	Duration float64 `json:"duration"`
	Percent  float64 `json:"percent"`
}
