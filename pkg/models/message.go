package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType classifies an inter-agent message.
type MessageType string

const (
	// MessageRequest is a plain addressed request.
	MessageRequest MessageType = "request"
	// MessageDelegate asks the receiver to run a sub-task.
	MessageDelegate MessageType = "delegate"
	// MessageResult reports a completed sub-task back to its delegator.
	MessageResult MessageType = "result"
	// MessageBroadcast is published to all agents.
	MessageBroadcast MessageType = "broadcast"
)

// Valid returns true if the type is a known value.
func (t MessageType) Valid() bool {
	switch t {
	case MessageRequest, MessageDelegate, MessageResult, MessageBroadcast:
		return true
	default:
		return false
	}
}

// MessageStatus is the delivery state of a persisted message.
type MessageStatus string

const (
	// MessagePending indicates the message is queued in an inbox.
	MessagePending MessageStatus = "pending"
	// MessageDelivered indicates the receiver popped the message.
	MessageDelivered MessageStatus = "delivered"
	// MessageProcessed indicates the receiver acted on the message.
	MessageProcessed MessageStatus = "processed"
	// MessageFailed indicates delivery or processing failed.
	MessageFailed MessageStatus = "failed"
)

// Message is the wire format exchanged between agents. Content is kept as raw
// JSON and decoded through the typed per-variant accessors so malformed
// payloads are caught at the boundary instead of deep inside a handler.
type Message struct {
	// MessageID is assigned once at send time.
	MessageID string `json:"message_id"`
	// SessionID scopes the conversation; defaults to TaskID.
	SessionID string `json:"session_id"`
	// TaskID is the task this message concerns.
	TaskID string `json:"task_id"`
	// SenderAgent is the originating agent name.
	SenderAgent string `json:"sender_agent"`
	// ReceiverAgent is the destination agent name; empty for broadcasts.
	ReceiverAgent string `json:"receiver_agent"`
	// Type classifies the payload.
	Type MessageType `json:"message_type"`
	// Content is the structured payload, shaped per Type.
	Content json.RawMessage `json:"content"`
	// Metadata carries optional sender-defined annotations.
	Metadata map[string]any `json:"metadata,omitempty"`
	// Timestamp is when the message was sent.
	Timestamp time.Time `json:"timestamp"`
}

// DelegateContent is the payload of a MessageDelegate message.
type DelegateContent struct {
	// SubTask is the description of the delegated work.
	SubTask string `json:"sub_task"`
	// ParentTaskID is the task the delegation originated from.
	ParentTaskID string `json:"parent_task_id"`
	// Context is supplementary information for the sub-agent.
	Context map[string]any `json:"context,omitempty"`
}

// ResultContent is the payload of a MessageResult message.
type ResultContent struct {
	// Result is the sub-task's execution result.
	Result *ExecutionResult `json:"result"`
	// Status is the sub-task's terminal status.
	Status TaskStatus `json:"status"`
	// ReportingAgent names the agent that ran the sub-task.
	ReportingAgent string `json:"reporting_agent"`
}

// DecodeDelegate decodes the content of a delegate message.
func (m *Message) DecodeDelegate() (*DelegateContent, error) {
	if m.Type != MessageDelegate {
		return nil, fmt.Errorf("message %s is %q, not delegate", m.MessageID, m.Type)
	}
	var c DelegateContent
	if err := json.Unmarshal(m.Content, &c); err != nil {
		return nil, fmt.Errorf("decode delegate content: %w", err)
	}
	if c.SubTask == "" {
		return nil, fmt.Errorf("delegate message %s has no sub_task", m.MessageID)
	}
	return &c, nil
}

// DecodeResult decodes the content of a result message.
func (m *Message) DecodeResult() (*ResultContent, error) {
	if m.Type != MessageResult {
		return nil, fmt.Errorf("message %s is %q, not result", m.MessageID, m.Type)
	}
	var c ResultContent
	if err := json.Unmarshal(m.Content, &c); err != nil {
		return nil, fmt.Errorf("decode result content: %w", err)
	}
	return &c, nil
}

// EncodeContent marshals an arbitrary payload for use as message content.
func EncodeContent(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message content: %w", err)
	}
	return raw, nil
}
