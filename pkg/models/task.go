// Package models defines the shared data model for the coordination core.
package models

import "time"

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	// TaskStatusQueued indicates the task is waiting for a worker.
	TaskStatusQueued TaskStatus = "queued"
	// TaskStatusRunning indicates the task is being processed.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusSuccess indicates the task completed successfully.
	TaskStatusSuccess TaskStatus = "success"
	// TaskStatusFailure indicates the task failed.
	TaskStatusFailure TaskStatus = "failure"
	// TaskStatusPartialSuccess indicates a multi-agent task in which at
	// least one sub-task failed while others succeeded.
	TaskStatusPartialSuccess TaskStatus = "partial_success"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusQueued, TaskStatusRunning, TaskStatusSuccess,
		TaskStatusFailure, TaskStatusPartialSuccess:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a final state. A task's terminal
// status is set at most once; stores must reject later transitions.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusSuccess, TaskStatusFailure, TaskStatusPartialSuccess:
		return true
	default:
		return false
	}
}

// Task represents one unit of work, possibly part of a delegation tree.
type Task struct {
	// TaskID is the globally unique identifier, never reused.
	TaskID string `json:"task_id"`
	// Description is the natural-language statement of the work.
	Description string `json:"description"`
	// AgentName is the persona assigned to this task.
	AgentName string `json:"agent_name"`
	// TenantID is the logical namespace the task executes under.
	TenantID string `json:"tenant_id"`
	// SessionID groups related tasks; defaults to TaskID when absent.
	SessionID string `json:"session_id,omitempty"`
	// ParentTaskID is set when this task was delegated from another.
	ParentTaskID string `json:"parent_task_id,omitempty"`
	// Depth is 0 for a root task and parent.Depth+1 for each delegation hop.
	Depth int `json:"depth"`
	// DelegatedBy names the agent that created this task, if any.
	DelegatedBy string `json:"delegated_by,omitempty"`
	// Status is the current lifecycle state.
	Status TaskStatus `json:"status"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the task reached a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// TokenUsage is the total tokens consumed, including descendant sub-tasks.
	TokenUsage int64 `json:"token_usage"`
	// EstimatedCost is the total estimated cost in dollars.
	EstimatedCost float64 `json:"estimated_cost"`
	// ModelUsed names the model(s) that produced decisions for this task.
	ModelUsed string `json:"model_used,omitempty"`
	// Error contains the error text if the task failed.
	Error string `json:"error,omitempty"`
}
