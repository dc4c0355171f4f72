// Package events publishes lifecycle events on the broker's notification
// channel for external observers. Emission is fire-and-forget and never
// required for correctness.
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/opsmind-ai/crewd/internal/broker"
)

// Type is the kind of event.
type Type string

const (
	// EventTaskQueued indicates a task was accepted onto the intake queue.
	EventTaskQueued Type = "task_queued"
	// EventTaskStarted indicates a worker began processing a task.
	EventTaskStarted Type = "task_started"
	// EventTaskCompleted indicates a task reached a terminal status.
	EventTaskCompleted Type = "task_completed"
	// EventTaskFailed indicates a task failed with an error.
	EventTaskFailed Type = "task_failed"

	// EventLoopStarted indicates an execution loop began for a task.
	EventLoopStarted Type = "exec_loop_started"
	// EventLoopCompleted indicates an execution loop finished.
	EventLoopCompleted Type = "exec_loop_completed"
	// EventStepThinking indicates a step entered the thinking phase.
	EventStepThinking Type = "exec_step_thinking"
	// EventStepActing indicates a step is executing a tool.
	EventStepActing Type = "exec_step_acting"
	// EventStepDelegating indicates a step is running a delegated sub-task.
	EventStepDelegating Type = "exec_step_delegating"
	// EventStepFinal indicates a step produced the final answer.
	EventStepFinal Type = "exec_step_final"
	// EventStepObserved indicates a completed step was recorded.
	EventStepObserved Type = "exec_step_observed"

	// EventOrchestratorStarted indicates orchestration began.
	EventOrchestratorStarted Type = "orchestrator_started"
	// EventOrchestratorAnalyzing indicates decomposition is in progress.
	EventOrchestratorAnalyzing Type = "orchestrator_analyzing"
	// EventOrchestratorPlanReady indicates the decomposition plan is known.
	EventOrchestratorPlanReady Type = "orchestrator_plan_ready"
	// EventOrchestratorSingleAgent indicates direct single-agent routing.
	EventOrchestratorSingleAgent Type = "orchestrator_single_agent"
	// EventOrchestratorMultiAgent indicates multi-agent fan-out began.
	EventOrchestratorMultiAgent Type = "orchestrator_multi_agent"
	// EventSubTaskStarted indicates one fan-out sub-task began.
	EventSubTaskStarted Type = "orchestrator_sub_task_started"
	// EventSubTaskCompleted indicates one fan-out sub-task finished.
	EventSubTaskCompleted Type = "orchestrator_sub_task_completed"
	// EventOrchestratorAggregating indicates result aggregation began.
	EventOrchestratorAggregating Type = "orchestrator_aggregating"
	// EventOrchestratorCompleted indicates orchestration finished.
	EventOrchestratorCompleted Type = "orchestrator_completed"

	// EventMessageSent indicates an addressed message was pushed to an inbox.
	EventMessageSent Type = "agent_message_sent"
	// EventBroadcast indicates a message was published to all agents.
	EventBroadcast Type = "agent_broadcast"

	// EventCallbackSent indicates a result callback was delivered.
	EventCallbackSent Type = "callback_sent"
	// EventCallbackFailed indicates a result callback could not be delivered.
	EventCallbackFailed Type = "callback_failed"
)

// DefaultChannel is the broker pub/sub channel events are published on.
const DefaultChannel = "events"

// Emitter publishes structured events to a broker channel.
type Emitter struct {
	broker  broker.Broker
	channel string
}

// NewEmitter creates an emitter publishing on the given channel.
// An empty channel selects DefaultChannel.
func NewEmitter(b broker.Broker, channel string) *Emitter {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Emitter{broker: b, channel: channel}
}

// Emit publishes one event. Failures are logged and swallowed; observers are
// best-effort only. Safe to call on a nil emitter.
func (e *Emitter) Emit(ctx context.Context, eventType Type, fields map[string]any) {
	if e == nil || e.broker == nil {
		return
	}

	payload := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		payload[k] = v
	}
	payload["event_type"] = string(eventType)
	payload["timestamp"] = time.Now().UnixMilli()

	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[events] marshal %s: %v", eventType, err)
		return
	}
	if err := e.broker.Publish(ctx, e.channel, string(raw)); err != nil {
		log.Printf("[events] publish %s: %v", eventType, err)
	}
}
