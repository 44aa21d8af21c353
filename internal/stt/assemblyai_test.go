package stt

import (
	"context"
	"errors"
	"testing"
)

func TestProcessMessage_TurnMapping(t *testing.T) {
	c := NewAssemblyAIClient("key")

	c.processMessage([]byte(`{
		"type": "Turn",
		"transcript": "tell me about your last project",
		"end_of_turn": true,
		"end_of_turn_confidence": 0.87,
		"words": [
			{"text": "tell", "start": 100, "end": 220, "confidence": 0.99},
			{"text": "me", "start": 230, "end": 300, "confidence": 0.98}
		]
	}`))

	select {
	case ev := <-c.Events():
		if ev.Text != "tell me about your last project" {
			t.Fatalf("unexpected text: %q", ev.Text)
		}
		if !ev.IsFinal {
			t.Fatalf("end_of_turn must map to a final event")
		}
		if ev.Confidence != 0.87 {
			t.Fatalf("unexpected confidence: %v", ev.Confidence)
		}
		if len(ev.Words) != 2 || ev.Words[0].Text != "tell" || ev.Words[0].StartMS != 100 || ev.Words[1].EndMS != 300 {
			t.Fatalf("unexpected words: %+v", ev.Words)
		}
	default:
		t.Fatalf("expected an event")
	}
}

func TestProcessMessage_InterimTurn(t *testing.T) {
	c := NewAssemblyAIClient("key")
	c.processMessage([]byte(`{"type":"Turn","transcript":"tell me","end_of_turn":false,"end_of_turn_confidence":0.2}`))

	select {
	case ev := <-c.Events():
		if ev.IsFinal {
			t.Fatalf("expected interim event")
		}
	default:
		t.Fatalf("expected an event")
	}
}

func TestProcessMessage_DropsEmptyAndUnknown(t *testing.T) {
	c := NewAssemblyAIClient("key")
	c.processMessage([]byte(`{"type":"Turn","transcript":"","end_of_turn":true}`))
	c.processMessage([]byte(`{"type":"Begin","id":"abc","expires_at":1700000000}`))
	c.processMessage([]byte(`{"type":"SomethingNew"}`))
	c.processMessage([]byte(`not json`))

	select {
	case ev := <-c.Events():
		t.Fatalf("unexpected event: %+v", ev)
	default:
	}
}

func TestEmit_InterimsDropUnderBackpressure(t *testing.T) {
	c := NewAssemblyAIClient("key")
	for i := 0; i < cap(c.events); i++ {
		c.events <- Event{Text: "fill"}
	}
	// Must return instead of blocking.
	c.emit(Event{Text: "interim", IsFinal: false})
	if got := len(c.events); got != cap(c.events) {
		t.Fatalf("interim was queued into a full channel: len=%d", got)
	}
}

func TestClose_IdempotentOnUnopenedClient(t *testing.T) {
	c := NewAssemblyAIClient("key")
	if err := c.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := c.Connect(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("connect after close = %v, want ErrUnavailable", err)
	}
}

func TestConnect_RequiresAPIKey(t *testing.T) {
	c := NewAssemblyAIClient("")
	if err := c.Connect(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSendAudio_RequiresConnection(t *testing.T) {
	c := NewAssemblyAIClient("key")
	if err := c.SendAudio([]byte{0, 1}); err == nil {
		t.Fatalf("expected error before connect")
	}
}
