// Package store persists the audit trail: task logs, reasoning steps, agent
// states, messages, and session memory. The coordination core treats
// persistence as best-effort; callers surface but do not depend on it.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/opsmind-ai/crewd/pkg/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrTerminal is returned when an update would change a task's status after
// it already reached a terminal state.
var ErrTerminal = errors.New("store: task status is terminal")

// TaskUpdate is a partial update of a task log; nil fields are unchanged.
type TaskUpdate struct {
	Status        *models.TaskStatus
	TokenUsage    *int64
	EstimatedCost *float64
	ModelUsed     *string
	Error         *string
}

// AgentStateUpdate is a partial update of an agent state.
type AgentStateUpdate struct {
	CurrentStep *int
	Status      *models.AgentStateStatus
	Scratchpad  *string
}

// Memory is one conversation turn retained per session.
type Memory struct {
	AgentName string
	SessionID string
	Role      string
	Content   string
	CreatedAt time.Time
}

// Store is the persistence boundary for the coordination core.
type Store interface {
	// CreateTask records a new task log entry.
	CreateTask(ctx context.Context, t *models.Task) error
	// GetTask fetches a task by id; ErrNotFound when absent.
	GetTask(ctx context.Context, taskID string) (*models.Task, error)
	// UpdateTask applies a partial update. Changing the status of a task
	// already in a terminal state returns ErrTerminal.
	UpdateTask(ctx context.Context, taskID string, upd TaskUpdate) error

	// AppendStep persists one completed reasoning step. Steps accumulate
	// incrementally so a crash after step N preserves steps 1..N.
	AppendStep(ctx context.Context, taskID string, step models.ExecutionStep) error
	// Steps returns a task's steps ordered by step number.
	Steps(ctx context.Context, taskID string) ([]models.ExecutionStep, error)

	// CreateAgentState records the state for a task. Creating a state that
	// already exists is not an error (retries re-attach).
	CreateAgentState(ctx context.Context, st *models.AgentState) error
	// UpdateAgentState applies a partial update; ErrNotFound when absent.
	UpdateAgentState(ctx context.Context, taskID string, upd AgentStateUpdate) error
	// GetAgentState fetches the state for a task; ErrNotFound when absent.
	GetAgentState(ctx context.Context, taskID string) (*models.AgentState, error)

	// SaveMessage records a message for audit with its delivery status.
	SaveMessage(ctx context.Context, msg *models.Message, status models.MessageStatus) error

	// SaveMemory records one conversation turn for a session.
	SaveMemory(ctx context.Context, mem Memory) error

	// Close releases resources.
	Close() error
}
