package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/opsmind-ai/crewd/internal/broker"
)

func TestEmitterPublishesOnChannel(t *testing.T) {
	b := broker.NewMemory()
	ctx := context.Background()

	ch, cancel, err := b.Subscribe(ctx, DefaultChannel)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	e := NewEmitter(b, "")
	e.Emit(ctx, EventTaskStarted, map[string]any{"task_id": "t1"})

	select {
	case raw := <-ch:
		var got map[string]any
		if err := json.Unmarshal([]byte(raw), &got); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if got["event_type"] != string(EventTaskStarted) {
			t.Errorf("expected event_type %q, got %v", EventTaskStarted, got["event_type"])
		}
		if got["task_id"] != "t1" {
			t.Errorf("expected task_id t1, got %v", got["task_id"])
		}
		if _, ok := got["timestamp"]; !ok {
			t.Error("expected timestamp field")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestEmitterNilSafe(t *testing.T) {
	var e *Emitter
	// Must not panic.
	e.Emit(context.Background(), EventTaskFailed, nil)
}
