package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/opsmind-ai/crewd/pkg/models"
)

// MemoryStore is an in-process Store for tests and dev mode.
type MemoryStore struct {
	mu       sync.RWMutex
	tasks    map[string]*models.Task
	steps    map[string][]models.ExecutionStep
	states   map[string]*models.AgentState
	messages []storedMessage
	memories []Memory
}

type storedMessage struct {
	msg    models.Message
	status models.MessageStatus
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:  make(map[string]*models.Task),
		steps:  make(map[string][]models.ExecutionStep),
		states: make(map[string]*models.AgentState),
	}
}

// CreateTask records a new task log entry.
func (s *MemoryStore) CreateTask(_ context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tasks[t.TaskID] = &cp
	return nil
}

// GetTask fetches a task by id.
func (s *MemoryStore) GetTask(_ context.Context, taskID string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// UpdateTask applies a partial update, protecting terminal statuses.
func (s *MemoryStore) UpdateTask(_ context.Context, taskID string, upd TaskUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return ErrNotFound
	}
	if upd.Status != nil {
		if t.Status.Terminal() && *upd.Status != t.Status {
			return ErrTerminal
		}
		t.Status = *upd.Status
		if upd.Status.Terminal() && t.CompletedAt == nil {
			now := time.Now()
			t.CompletedAt = &now
		}
	}
	if upd.TokenUsage != nil {
		t.TokenUsage = *upd.TokenUsage
	}
	if upd.EstimatedCost != nil {
		t.EstimatedCost = *upd.EstimatedCost
	}
	if upd.ModelUsed != nil {
		t.ModelUsed = *upd.ModelUsed
	}
	if upd.Error != nil {
		t.Error = *upd.Error
	}
	return nil
}

// Tasks returns all task records, for tests and inspection.
func (s *MemoryStore) Tasks() []*models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		cp := *t
		out = append(out, &cp)
	}
	return out
}

// AppendStep persists one completed reasoning step.
func (s *MemoryStore) AppendStep(_ context.Context, taskID string, step models.ExecutionStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-appending the same step number on a retry is tolerated.
	for _, existing := range s.steps[taskID] {
		if existing.StepNumber == step.StepNumber {
			return nil
		}
	}
	s.steps[taskID] = append(s.steps[taskID], step)
	return nil
}

// Steps returns a task's steps ordered by step number.
func (s *MemoryStore) Steps(_ context.Context, taskID string) ([]models.ExecutionStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	steps := make([]models.ExecutionStep, len(s.steps[taskID]))
	copy(steps, s.steps[taskID])
	sort.Slice(steps, func(i, j int) bool { return steps[i].StepNumber < steps[j].StepNumber })
	return steps, nil
}

// CreateAgentState records a task's agent state, idempotently.
func (s *MemoryStore) CreateAgentState(_ context.Context, st *models.AgentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.states[st.TaskID]; exists {
		return nil
	}
	cp := *st
	s.states[st.TaskID] = &cp
	return nil
}

// UpdateAgentState applies a partial update.
func (s *MemoryStore) UpdateAgentState(_ context.Context, taskID string, upd AgentStateUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[taskID]
	if !ok {
		return ErrNotFound
	}
	if upd.CurrentStep != nil {
		st.CurrentStep = *upd.CurrentStep
	}
	if upd.Status != nil {
		st.Status = *upd.Status
	}
	if upd.Scratchpad != nil {
		st.Scratchpad = *upd.Scratchpad
	}
	return nil
}

// GetAgentState fetches the state for a task.
func (s *MemoryStore) GetAgentState(_ context.Context, taskID string) (*models.AgentState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *st
	return &cp, nil
}

// SaveMessage records a message for audit.
func (s *MemoryStore) SaveMessage(_ context.Context, msg *models.Message, status models.MessageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, storedMessage{msg: *msg, status: status})
	return nil
}

// Messages returns all audited messages, for tests and inspection.
func (s *MemoryStore) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, len(s.messages))
	for i, sm := range s.messages {
		out[i] = sm.msg
	}
	return out
}

// SaveMemory records one conversation turn.
func (s *MemoryStore) SaveMemory(_ context.Context, mem Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mem.CreatedAt.IsZero() {
		mem.CreatedAt = time.Now()
	}
	s.memories = append(s.memories, mem)
	return nil
}

// Memories returns all retained conversation turns, for tests.
func (s *MemoryStore) Memories() []Memory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Memory, len(s.memories))
	copy(out, s.memories)
	return out
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
