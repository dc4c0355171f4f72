// Package bus implements inter-agent communication: addressed inboxes,
// broadcast, task-scoped shared context, and result waiting, all built on the
// broker contract.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/opsmind-ai/crewd/internal/broker"
	"github.com/opsmind-ai/crewd/internal/events"
	"github.com/opsmind-ai/crewd/internal/store"
	"github.com/opsmind-ai/crewd/pkg/models"
)

const (
	// BroadcastChannel is the pub/sub channel broadcasts are published on.
	BroadcastChannel = "agent:broadcast"

	// contextTTL is refreshed on every shared-context write.
	contextTTL = time.Hour
	// contextField holds the whole context map as one serialized blob.
	contextField = "__all__"

	// resultCacheTTL bounds how long a matched result stays retrievable
	// after the first WaitForResult hit.
	resultCacheTTL = 5 * time.Minute
	resultCacheCap = 256

	// pollSlice caps each blocking pop inside WaitForResult so the deadline
	// is honored even when non-matching traffic keeps arriving.
	pollSlice = 500 * time.Millisecond
)

// InboxKey returns the broker list key backing an agent's inbox.
func InboxKey(agent string) string {
	return fmt.Sprintf("agent:%s:inbox", agent)
}

// ContextKey returns the broker hash key backing a task's shared context.
func ContextKey(taskID string) string {
	return fmt.Sprintf("task:%s:context", taskID)
}

// Bus routes messages between agents. All message persistence is best-effort
// audit; delivery correctness depends only on the broker.
type Bus struct {
	broker  broker.Broker
	store   store.Store
	emitter *events.Emitter
	cache   *expirable.LRU[string, *models.Message]
}

// New creates a bus on the given broker. Store and emitter may be nil; audit
// and events are then skipped.
func New(b broker.Broker, st store.Store, em *events.Emitter) *Bus {
	return &Bus{
		broker:  b,
		store:   st,
		emitter: em,
		cache:   expirable.NewLRU[string, *models.Message](resultCacheCap, nil, resultCacheTTL),
	}
}

// Send assigns the message an id and timestamp, pushes it onto the receiver's
// inbox, audits it, and emits an event. SessionID defaults to TaskID.
func (b *Bus) Send(ctx context.Context, msg models.Message) (string, error) {
	if msg.ReceiverAgent == "" {
		return "", fmt.Errorf("send: message has no receiver")
	}
	if !msg.Type.Valid() {
		return "", fmt.Errorf("send: unknown message type %q", msg.Type)
	}

	msg.MessageID = uuid.NewString()
	msg.Timestamp = time.Now()
	if msg.SessionID == "" {
		msg.SessionID = msg.TaskID
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("send: encode message: %w", err)
	}
	if err := b.broker.Push(ctx, InboxKey(msg.ReceiverAgent), string(raw)); err != nil {
		return "", fmt.Errorf("send: push to %s inbox: %w", msg.ReceiverAgent, err)
	}

	b.audit(ctx, &msg, models.MessagePending)
	b.emitter.Emit(ctx, events.EventMessageSent, map[string]any{
		"message_id":   msg.MessageID,
		"task_id":      msg.TaskID,
		"sender":       msg.SenderAgent,
		"receiver":     msg.ReceiverAgent,
		"message_type": string(msg.Type),
	})
	return msg.MessageID, nil
}

// Receive reads an agent's inbox. A zero timeout drains every currently
// queued message without blocking; a positive timeout performs one blocking
// pop and returns at most one message.
func (b *Bus) Receive(ctx context.Context, agent string, timeout time.Duration) ([]*models.Message, error) {
	if timeout > 0 {
		msg, err := b.ReceiveOne(ctx, agent, timeout)
		if err != nil || msg == nil {
			return nil, err
		}
		return []*models.Message{msg}, nil
	}

	var msgs []*models.Message
	for {
		raw, ok, err := b.broker.Pop(ctx, InboxKey(agent))
		if err != nil {
			return msgs, fmt.Errorf("receive: pop %s inbox: %w", agent, err)
		}
		if !ok {
			return msgs, nil
		}
		msg, err := decodeMessage(raw)
		if err != nil {
			log.Printf("[bus] dropping undecodable message for %s: %v", agent, err)
			continue
		}
		msgs = append(msgs, msg)
	}
}

// ReceiveOne performs one blocking pop bounded by timeout. It returns nil
// with no error when the timeout elapses empty.
func (b *Bus) ReceiveOne(ctx context.Context, agent string, timeout time.Duration) (*models.Message, error) {
	raw, ok, err := b.broker.PopBlocking(ctx, InboxKey(agent), timeout)
	if err != nil {
		return nil, fmt.Errorf("receive: blocking pop %s inbox: %w", agent, err)
	}
	if !ok {
		return nil, nil
	}
	return decodeMessage(raw)
}

// Delegate sends a delegate message carrying a sub-task to the receiver.
func (b *Bus) Delegate(ctx context.Context, sender, receiver, subTask, parentTaskID string, taskContext map[string]any) (string, error) {
	content, err := models.EncodeContent(models.DelegateContent{
		SubTask:      subTask,
		ParentTaskID: parentTaskID,
		Context:      taskContext,
	})
	if err != nil {
		return "", err
	}
	return b.Send(ctx, models.Message{
		TaskID:        parentTaskID,
		SenderAgent:   sender,
		ReceiverAgent: receiver,
		Type:          models.MessageDelegate,
		Content:       content,
	})
}

// ReportResult sends a result message for a completed sub-task back to the
// delegating agent.
func (b *Bus) ReportResult(ctx context.Context, sender, receiver, taskID string, result *models.ExecutionResult, status models.TaskStatus) (string, error) {
	content, err := models.EncodeContent(models.ResultContent{
		Result:         result,
		Status:         status,
		ReportingAgent: sender,
	})
	if err != nil {
		return "", err
	}
	return b.Send(ctx, models.Message{
		TaskID:        taskID,
		SenderAgent:   sender,
		ReceiverAgent: receiver,
		Type:          models.MessageResult,
		Content:       content,
	})
}

// Broadcast publishes a message to every agent subscribed to the broadcast
// channel. Delivery is fire-and-forget; only the audit record persists.
func (b *Bus) Broadcast(ctx context.Context, sender string, content json.RawMessage, taskID string) (string, error) {
	msg := models.Message{
		MessageID:   uuid.NewString(),
		SessionID:   taskID,
		TaskID:      taskID,
		SenderAgent: sender,
		Type:        models.MessageBroadcast,
		Content:     content,
		Timestamp:   time.Now(),
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("broadcast: encode message: %w", err)
	}
	if err := b.broker.Publish(ctx, BroadcastChannel, string(raw)); err != nil {
		return "", fmt.Errorf("broadcast: publish: %w", err)
	}

	b.audit(ctx, &msg, models.MessageDelivered)
	b.emitter.Emit(ctx, events.EventBroadcast, map[string]any{
		"message_id": msg.MessageID,
		"task_id":    taskID,
		"sender":     sender,
	})
	return msg.MessageID, nil
}

// SetSharedContext writes one key of a task's shared context. The whole
// context map is stored as a single blob, so concurrent writers are
// last-write-wins; the orchestrator's sequential fan-out keeps that safe.
// Every write refreshes the context TTL.
func (b *Bus) SetSharedContext(ctx context.Context, taskID, key string, value any) error {
	current, err := b.SharedContext(ctx, taskID)
	if err != nil {
		return err
	}
	current[key] = value

	blob, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("shared context: encode: %w", err)
	}
	hashKey := ContextKey(taskID)
	if err := b.broker.HashSet(ctx, hashKey, contextField, string(blob)); err != nil {
		return fmt.Errorf("shared context: write %s: %w", hashKey, err)
	}
	if err := b.broker.Expire(ctx, hashKey, contextTTL); err != nil {
		return fmt.Errorf("shared context: refresh ttl on %s: %w", hashKey, err)
	}
	return nil
}

// SharedContext returns the full shared context for a task; an absent or
// expired context yields an empty map.
func (b *Bus) SharedContext(ctx context.Context, taskID string) (map[string]any, error) {
	raw, ok, err := b.broker.HashGet(ctx, ContextKey(taskID), contextField)
	if err != nil {
		return nil, fmt.Errorf("shared context: read task %s: %w", taskID, err)
	}
	if !ok {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("shared context: decode task %s: %w", taskID, err)
	}
	return m, nil
}

// SharedContextValue reads one key of a task's shared context. The second
// return is false when the key is unset.
func (b *Bus) SharedContextValue(ctx context.Context, taskID, key string) (any, bool, error) {
	m, err := b.SharedContext(ctx, taskID)
	if err != nil {
		return nil, false, err
	}
	v, ok := m[key]
	return v, ok, nil
}

// InboxSize returns the number of messages queued for an agent.
func (b *Bus) InboxSize(ctx context.Context, agent string) (int64, error) {
	n, err := b.broker.Len(ctx, InboxKey(agent))
	if err != nil {
		return 0, fmt.Errorf("inbox size for %s: %w", agent, err)
	}
	return n, nil
}

// AllInboxSizes returns queue depths for a set of agents.
func (b *Bus) AllInboxSizes(ctx context.Context, agents []string) (map[string]int64, error) {
	sizes := make(map[string]int64, len(agents))
	for _, agent := range agents {
		n, err := b.InboxSize(ctx, agent)
		if err != nil {
			return nil, err
		}
		sizes[agent] = n
	}
	return sizes, nil
}

// WaitForResult waits up to timeout for a result message addressed to agent
// for the given task. Non-matching messages popped while waiting are pushed
// back onto the inbox. A match is cached briefly so a second waiter for the
// same (agent, task) pair still sees it. Returns nil when the deadline
// elapses with no match.
func (b *Bus) WaitForResult(ctx context.Context, agent, taskID string, timeout time.Duration) (*models.Message, error) {
	cacheKey := agent + "|" + taskID
	if msg, ok := b.cache.Get(cacheKey); ok {
		return msg, nil
	}

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		slice := remaining
		if slice > pollSlice {
			slice = pollSlice
		}

		msg, err := b.ReceiveOne(ctx, agent, slice)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			continue
		}
		if msg.Type == models.MessageResult && msg.TaskID == taskID {
			b.cache.Add(cacheKey, msg)
			return msg, nil
		}

		// Not ours; requeue so other consumers still see it.
		raw, err := json.Marshal(msg)
		if err != nil {
			log.Printf("[bus] requeue encode for %s: %v", agent, err)
			continue
		}
		if err := b.broker.Push(ctx, InboxKey(agent), string(raw)); err != nil {
			return nil, fmt.Errorf("wait: requeue for %s: %w", agent, err)
		}
	}
}

func (b *Bus) audit(ctx context.Context, msg *models.Message, status models.MessageStatus) {
	if b.store == nil {
		return
	}
	if err := b.store.SaveMessage(ctx, msg, status); err != nil {
		log.Printf("[bus] audit message %s: %v", msg.MessageID, err)
	}
}

func decodeMessage(raw string) (*models.Message, error) {
	var msg models.Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &msg, nil
}
