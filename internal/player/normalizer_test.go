package player

import (
	"testing"
	"time"
)

func at(base time.Time, offset time.Duration) time.Time {
	return base.Add(offset)
}

func TestNormalizer_PlayPause(t *testing.T) {
	n := NewNormalizer()
	base := time.Now()

	st, changed := n.Apply(Event{Kind: EventPlay, Source: SourceBridge, Position: -1, ObservedAt: base})
	if !changed || !st.Playing {
		t.Fatalf("expected playing transition, got changed=%v state=%+v", changed, st)
	}

	st, changed = n.Apply(Event{Kind: EventPause, Source: SourceBridge, Position: -1, ObservedAt: at(base, time.Second)})
	if !changed || st.Playing {
		t.Fatalf("expected pause transition, got changed=%v state=%+v", changed, st)
	}
}

func TestNormalizer_RepeatedPlayIsNoOp(t *testing.T) {
	n := NewNormalizer()
	base := time.Now()

	n.Apply(Event{Kind: EventPlay, Source: SourceBridge, Position: -1, ObservedAt: base})

	// Same play state from a different producer must not re-trigger.
	_, changed := n.Apply(Event{Kind: EventPlay, Source: SourceFallback, Position: -1, ObservedAt: at(base, time.Second)})
	if changed {
		t.Fatal("repeated play reported as a transition")
	}
}

func TestNormalizer_StaleTransitionDiscarded(t *testing.T) {
	n := NewNormalizer()
	base := time.Now()

	n.Apply(Event{Kind: EventPlay, Source: SourceBridge, Position: -1, ObservedAt: at(base, 2*time.Second)})

	// A pause observed before the play was applied lost the race and
	// must not flip the state back.
	st, changed := n.Apply(Event{Kind: EventPause, Source: SourceFallback, Position: -1, ObservedAt: at(base, time.Second)})
	if changed {
		t.Fatal("stale pause applied")
	}
	if !st.Playing {
		t.Fatal("playing state lost to stale pause")
	}
}

func TestNormalizer_TimingAbsorbed(t *testing.T) {
	n := NewNormalizer()
	base := time.Now()

	st, _ := n.Apply(Event{Kind: EventTimeUpdate, Source: SourceFallback, Position: 42.5, Duration: 120, ObservedAt: base})
	if st.Position != 42.5 || st.Duration != 120 {
		t.Fatalf("timing not absorbed: %+v", st)
	}

	// Play and pause events carry no position; the last known one stays.
	st, _ = n.Apply(Event{Kind: EventPause, Source: SourceBridge, Position: -1, ObservedAt: at(base, time.Second)})
	if st.Position != 42.5 {
		t.Fatalf("position lost on pause: %+v", st)
	}
}

func TestNormalizer_PositionClampedToDuration(t *testing.T) {
	n := NewNormalizer()
	base := time.Now()

	n.Apply(Event{Kind: EventTimeUpdate, Source: SourceFallback, Position: 10, Duration: 100, ObservedAt: base})
	st, _ := n.Apply(Event{Kind: EventTimeUpdate, Source: SourceFallback, Position: 150, Duration: -1, ObservedAt: at(base, time.Second)})
	if st.Position != 100 {
		t.Fatalf("expected position clamped to 100, got %v", st.Position)
	}
}

func TestNormalizer_SeekUpdatesPosition(t *testing.T) {
	n := NewNormalizer()
	st, _ := n.Apply(Event{Kind: EventSeeked, Source: SourceNative, Position: 77, ObservedAt: time.Now()})
	if st.Position != 77 {
		t.Fatalf("seek not absorbed: %+v", st)
	}
}

func TestNormalizer_ReadyFlag(t *testing.T) {
	n := NewNormalizer()
	st, changed := n.Apply(Event{Kind: EventReady, Source: SourceBridge, Position: -1, Duration: 90, ObservedAt: time.Now()})
	if changed {
		t.Fatal("ready must not count as a play-state change")
	}
	if !st.Ready || st.Duration != 90 {
		t.Fatalf("ready not recorded: %+v", st)
	}
}

func TestNormalizer_Reset(t *testing.T) {
	n := NewNormalizer()
	base := time.Now()
	n.Apply(Event{Kind: EventPlay, Source: SourceBridge, Position: -1, ObservedAt: base})
	n.Apply(Event{Kind: EventTimeUpdate, Source: SourceBridge, Position: 30, Duration: 60, ObservedAt: base})

	n.Reset()
	if st := n.State(); st.Playing || st.Position != 0 || st.Duration != 0 || st.Ready {
		t.Fatalf("reset left state behind: %+v", st)
	}

	// After reset an older timestamp must be acceptable again.
	_, changed := n.Apply(Event{Kind: EventPlay, Source: SourceBridge, Position: -1, ObservedAt: at(base, -time.Hour)})
	if !changed {
		t.Fatal("transition rejected after reset")
	}
}
