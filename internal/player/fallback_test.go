package player

import (
	"encoding/json"
	"testing"

	"github.com/jonboulle/clockwork"
)

const testOrigin = "player.example.com"

func newTestFallback(t *testing.T) (*Fallback, *[]Event) {
	t.Helper()
	events := &[]Event{}
	f := NewFallback(testOrigin, clockwork.NewFakeClock(), func(ev Event) {
		*events = append(*events, ev)
	})
	return f, events
}

func TestFallback_ForeignOriginDropped(t *testing.T) {
	f, events := newTestFallback(t)
	f.HandleMessage(Message{Origin: "https://evil.example.org", Data: []byte(`{"event":"play"}`)})
	if len(*events) != 0 {
		t.Fatalf("foreign-origin message produced events: %v", *events)
	}
}

func TestFallback_MalformedJSONDropped(t *testing.T) {
	f, events := newTestFallback(t)
	f.HandleMessage(Message{Origin: "https://" + testOrigin, Data: []byte(`not json`)})
	f.HandleMessage(Message{Origin: "https://" + testOrigin, Data: []byte(`{"event":"playProgress","data":"bogus"}`)})
	if len(*events) != 0 {
		t.Fatalf("malformed messages produced events: %v", *events)
	}
}

func TestFallback_PlayPauseFinish(t *testing.T) {
	f, events := newTestFallback(t)
	origin := "https://" + testOrigin

	f.HandleMessage(Message{Origin: origin, Data: []byte(`{"event":"play"}`)})
	f.HandleMessage(Message{Origin: origin, Data: []byte(`{"event":"pause"}`)})
	f.HandleMessage(Message{Origin: origin, Data: []byte(`{"event":"finish"}`)})

	kinds := []EventKind{}
	for _, ev := range *events {
		kinds = append(kinds, ev.Kind)
	}
	want := []EventKind{EventPlay, EventPause, EventEnded}
	if len(kinds) != len(want) {
		t.Fatalf("expected %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, kinds)
		}
	}
}

func TestFallback_RepeatedPlayDeduplicated(t *testing.T) {
	f, events := newTestFallback(t)
	origin := "https://" + testOrigin

	f.HandleMessage(Message{Origin: origin, Data: []byte(`{"event":"play"}`)})
	f.HandleMessage(Message{Origin: origin, Data: []byte(`{"event":"play"}`)})

	if len(*events) != 1 {
		t.Fatalf("expected 1 event, got %d: %v", len(*events), *events)
	}
}

func TestFallback_ProgressImpliesPlaying(t *testing.T) {
	f, events := newTestFallback(t)
	origin := "https://" + testOrigin

	f.HandleMessage(Message{Origin: origin, Data: []byte(`{"event":"playProgress","data":{"seconds":12.5,"duration":100,"percent":0.125}}`)})

	if len(*events) != 2 {
		t.Fatalf("expected timeupdate plus inferred play, got %v", *events)
	}
	if (*events)[0].Kind != EventTimeUpdate || (*events)[0].Position != 12.5 || (*events)[0].Duration != 100 {
		t.Fatalf("bad timeupdate: %+v", (*events)[0])
	}
	if (*events)[1].Kind != EventPlay {
		t.Fatalf("expected inferred play, got %+v", (*events)[1])
	}
}

func TestFallback_ProgressAtEndNotPlaying(t *testing.T) {
	f, events := newTestFallback(t)
	origin := "https://" + testOrigin

	// percent at the very end is the player settling, not playback.
	f.HandleMessage(Message{Origin: origin, Data: []byte(`{"event":"playProgress","data":{"seconds":100,"duration":100,"percent":1}}`)})

	for _, ev := range *events {
		if ev.Kind == EventPlay {
			t.Fatalf("end-of-video progress inferred play: %v", *events)
		}
	}
}

func TestFallback_SubscribesOnReady(t *testing.T) {
	f, _ := newTestFallback(t)

	var sent []string
	f.SetSender(func(data []byte) error {
		var cmd struct {
			Method string `json:"method"`
			Value  string `json:"value"`
		}
		if err := json.Unmarshal(data, &cmd); err != nil {
			t.Fatalf("unparseable outbound payload: %s", data)
		}
		if cmd.Method != "addEventListener" {
			t.Fatalf("unexpected method %q", cmd.Method)
		}
		sent = append(sent, cmd.Value)
		return nil
	})

	origin := "https://" + testOrigin
	f.HandleMessage(Message{Origin: origin, Data: []byte(`{"event":"ready"}`)})
	// A second ready must not resubscribe.
	f.HandleMessage(Message{Origin: origin, Data: []byte(`{"event":"ready"}`)})

	want := []string{"play", "pause", "finish", "playProgress"}
	if len(sent) != len(want) {
		t.Fatalf("expected subscriptions %v, got %v", want, sent)
	}
	for i := range want {
		if sent[i] != want[i] {
			t.Fatalf("expected subscriptions %v, got %v", want, sent)
		}
	}
}
