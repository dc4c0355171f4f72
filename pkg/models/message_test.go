package models

import (
	"encoding/json"
	"testing"
)

func TestMessageDecodeDelegate(t *testing.T) {
	content, err := EncodeContent(DelegateContent{
		SubTask:      "check inventory",
		ParentTaskID: "parent-1",
		Context:      map[string]any{"priority": 1},
	})
	if err != nil {
		t.Fatalf("encode content: %v", err)
	}

	msg := &Message{MessageID: "m1", Type: MessageDelegate, Content: content}
	got, err := msg.DecodeDelegate()
	if err != nil {
		t.Fatalf("decode delegate: %v", err)
	}
	if got.SubTask != "check inventory" {
		t.Errorf("expected sub_task %q, got %q", "check inventory", got.SubTask)
	}
	if got.ParentTaskID != "parent-1" {
		t.Errorf("expected parent task %q, got %q", "parent-1", got.ParentTaskID)
	}
}

func TestMessageDecodeDelegate_WrongType(t *testing.T) {
	msg := &Message{MessageID: "m1", Type: MessageResult, Content: json.RawMessage(`{}`)}
	if _, err := msg.DecodeDelegate(); err == nil {
		t.Error("expected error decoding result message as delegate")
	}
}

func TestMessageDecodeDelegate_MissingSubTask(t *testing.T) {
	msg := &Message{MessageID: "m1", Type: MessageDelegate, Content: json.RawMessage(`{"parent_task_id":"p"}`)}
	if _, err := msg.DecodeDelegate(); err == nil {
		t.Error("expected error for delegate content without sub_task")
	}
}

func TestMessageDecodeResult_Malformed(t *testing.T) {
	msg := &Message{MessageID: "m1", Type: MessageResult, Content: json.RawMessage(`not json`)}
	if _, err := msg.DecodeResult(); err == nil {
		t.Error("expected error for malformed result content")
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	tests := []struct {
		status   TaskStatus
		terminal bool
	}{
		{TaskStatusQueued, false},
		{TaskStatusRunning, false},
		{TaskStatusSuccess, true},
		{TaskStatusFailure, true},
		{TaskStatusPartialSuccess, true},
	}
	for _, tc := range tests {
		if got := tc.status.Terminal(); got != tc.terminal {
			t.Errorf("%s: expected terminal=%v, got %v", tc.status, tc.terminal, got)
		}
	}
}

func TestStepActionTerminates(t *testing.T) {
	if ActionUseTool.Terminates() || ActionDelegate.Terminates() {
		t.Error("use_tool and delegate must not terminate the loop")
	}
	if !ActionFinalAnswer.Terminates() || !ActionUnknown.Terminates() {
		t.Error("final_answer and unknown must terminate the loop")
	}
}
