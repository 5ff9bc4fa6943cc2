package player

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	defaultLocateAttempts = 20
	defaultLocateInterval = 500 * time.Millisecond
	defaultQueryTimeout   = 2 * time.Second
)

// Bridge is the structured producer: it drives the typed
// request/response protocol with the embedded player. The embedded
// content may never load, the channel may never emit, and query
// responses may hang; none of that is allowed to block anything but the
// individual query that asked.
type BridgeConfig struct {
	Locator       Locator
	TrustedOrigin string
	Clock         clockwork.Clock
	Emit          func(Event)

	// OnDegraded fires when the channel could not be located within the
	// attempt budget. Playback stays untracked for this producer, but
	// the condition is surfaced rather than silently dropped.
	OnDegraded func()

	LocateAttempts int
	LocateInterval time.Duration
	QueryTimeout   time.Duration
}

type Bridge struct {
	cfg BridgeConfig

	mu      sync.Mutex
	ch      Channel
	pending map[string]chan json.RawMessage
}

func NewBridge(cfg BridgeConfig) *Bridge {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.LocateAttempts == 0 {
		cfg.LocateAttempts = defaultLocateAttempts
	}
	if cfg.LocateInterval == 0 {
		cfg.LocateInterval = defaultLocateInterval
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = defaultQueryTimeout
	}
	return &Bridge{cfg: cfg, pending: make(map[string]chan json.RawMessage)}
}

// Run locates the embed channel, subscribes to its events, and pumps
// inbound messages until ctx is done. It returns ErrChannelUnavailable
// after exhausting the locate budget, having first fired OnDegraded.
func (b *Bridge) Run(ctx context.Context) error {
	ch, ok := b.locate(ctx)
	if !ok {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("player: embed channel not found, bridge degraded",
			"attempts", b.cfg.LocateAttempts)
		if b.cfg.OnDegraded != nil {
			b.cfg.OnDegraded()
		}
		return ErrChannelUnavailable
	}

	b.mu.Lock()
	b.ch = ch
	b.mu.Unlock()

	b.subscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, open := <-ch.Messages():
			if !open {
				return nil
			}
			b.handleMessage(msg)
		}
	}
}

func (b *Bridge) locate(ctx context.Context) (Channel, bool) {
	for attempt := 0; attempt < b.cfg.LocateAttempts; attempt++ {
		if ch, ok := b.cfg.Locator.Locate(); ok {
			return ch, true
		}
		select {
		case <-ctx.Done():
			return nil, false
		case <-b.cfg.Clock.After(b.cfg.LocateInterval):
		}
	}
	return nil, false
}

func (b *Bridge) subscribe() {
	for _, name := range []string{"ready", "play", "pause", "finish", "playProgress"} {
		b.sendCommand("addEventListener", name)
	}
}

func (b *Bridge) handleMessage(msg Message) {
	if !strings.Contains(msg.Origin, b.cfg.TrustedOrigin) {
		return
	}
	var env inboundEnvelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		return
	}

	if env.Method != "" {
		b.resolveQuery(env.Method, env.Value)
		return
	}

	now := b.cfg.Clock.Now()
	switch env.Event {
	case "ready":
		b.cfg.Emit(Event{Kind: EventReady, Source: SourceBridge, Position: -1, ObservedAt: now})
	case "play":
		b.cfg.Emit(Event{Kind: EventPlay, Source: SourceBridge, Position: -1, ObservedAt: now})
	case "pause":
		b.cfg.Emit(Event{Kind: EventPause, Source: SourceBridge, Position: -1, ObservedAt: now})
	case "finish":
		b.cfg.Emit(Event{Kind: EventEnded, Source: SourceBridge, Position: -1, ObservedAt: now})
	case "playProgress":
		var p progressData
		if env.Data == nil || json.Unmarshal(env.Data, &p) != nil {
			return
		}
		b.cfg.Emit(Event{
			Kind:       EventTimeUpdate,
			Source:     SourceBridge,
			Position:   p.Seconds,
			Duration:   p.Duration,
			ObservedAt: now,
		})
	}
}

// Play instructs the embedded player to start playback.
func (b *Bridge) Play() error { return b.sendCommand("play", nil) }

// Pause instructs the embedded player to pause.
func (b *Bridge) Pause() error { return b.sendCommand("pause", nil) }

// SeekTo moves the embedded player's playhead.
func (b *Bridge) SeekTo(seconds float64) error {
	return b.sendCommand("setCurrentTime", seconds)
}

// CurrentTime queries the embedded player's playhead position.
func (b *Bridge) CurrentTime(ctx context.Context) (float64, error) {
	raw, err := b.query(ctx, "getCurrentTime")
	if err != nil {
		return 0, err
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("player: bad getCurrentTime response: %w", err)
	}
	return v, nil
}

// Duration queries the video duration.
func (b *Bridge) Duration(ctx context.Context) (float64, error) {
	raw, err := b.query(ctx, "getDuration")
	if err != nil {
		return 0, err
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("player: bad getDuration response: %w", err)
	}
	return v, nil
}

// Paused queries whether the embedded player is paused. Errors report
// paused=true; a hung embed must never be assumed to be playing.
func (b *Bridge) Paused(ctx context.Context) (bool, error) {
	raw, err := b.query(ctx, "getPaused")
	if err != nil {
		return true, err
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return true, fmt.Errorf("player: bad getPaused response: %w", err)
	}
	return v, nil
}

func (b *Bridge) sendCommand(method string, value any) error {
	b.mu.Lock()
	ch := b.ch
	b.mu.Unlock()
	if ch == nil {
		return ErrChannelUnavailable
	}
	payload, err := json.Marshal(outboundCommand{Method: method, Value: value})
	if err != nil {
		return err
	}
	return ch.Send(payload)
}

func (b *Bridge) query(ctx context.Context, method string) (json.RawMessage, error) {
	result := make(chan json.RawMessage, 1)

	b.mu.Lock()
	if b.ch == nil {
		b.mu.Unlock()
		return nil, ErrChannelUnavailable
	}
	b.pending[method] = result
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		if b.pending[method] == result {
			delete(b.pending, method)
		}
		b.mu.Unlock()
	}()

	if err := b.sendCommand(method, nil); err != nil {
		return nil, err
	}

	select {
	case raw := <-result:
		return raw, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.cfg.Clock.After(b.cfg.QueryTimeout):
		return nil, fmt.Errorf("player: %s query timed out", method)
	}
}

func (b *Bridge) resolveQuery(method string, value json.RawMessage) {
	b.mu.Lock()
	result, ok := b.pending[method]
	if ok {
		delete(b.pending, method)
	}
	b.mu.Unlock()
	if ok {
		result <- value
	}
}
