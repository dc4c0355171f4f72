// Package worker consumes submitted tasks from the broker intake queue and
// drives them through the orchestrator, with optional result callbacks.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/opsmind-ai/crewd/internal/broker"
	"github.com/opsmind-ai/crewd/internal/events"
	"github.com/opsmind-ai/crewd/internal/orchestrator"
	"github.com/opsmind-ai/crewd/internal/persona"
	"github.com/opsmind-ai/crewd/internal/store"
	"github.com/opsmind-ai/crewd/pkg/models"
)

// DefaultQueue is the broker list submitted tasks are pushed onto.
const DefaultQueue = "task_queue"

// popTimeout is how long each blocking pop waits before re-checking the
// context.
const popTimeout = time.Second

// Job is the intake queue wire format.
type Job struct {
	// TaskID is optional; the worker assigns one when empty.
	TaskID string `json:"task_id"`
	// Task is the task description.
	Task string `json:"task"`
	// PersonaName selects the agent, or an auto-route sentinel.
	PersonaName string `json:"persona_name"`
	// TenantID is the namespace the task executes under.
	TenantID string `json:"tenant_id"`
	// SessionID scopes conversation memory; may be empty.
	SessionID string `json:"session_id"`
	// Source records where the job came from.
	Source string `json:"source"`
	// UseOrchestrator forces orchestrator routing even for a named persona.
	UseOrchestrator bool `json:"use_orchestrator"`
	// CallbackURL, when set, receives a POST with the result summary.
	CallbackURL string `json:"callback_url"`
}

// Worker pops jobs from the intake queue and processes them.
type Worker struct {
	broker          broker.Broker
	orch            *orchestrator.Orchestrator
	store           store.Store
	emitter         *events.Emitter
	queue           string
	client          *http.Client
	callbackTimeout time.Duration
}

// Option configures a Worker.
type Option func(*Worker)

// WithQueue overrides the intake queue name.
func WithQueue(queue string) Option {
	return func(w *Worker) {
		if queue != "" {
			w.queue = queue
		}
	}
}

// WithStore enables task log and session memory persistence.
func WithStore(st store.Store) Option {
	return func(w *Worker) { w.store = st }
}

// WithEmitter enables lifecycle event emission.
func WithEmitter(em *events.Emitter) Option {
	return func(w *Worker) { w.emitter = em }
}

// WithCallbackTimeout bounds result callback POSTs.
func WithCallbackTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.callbackTimeout = d
			w.client = &http.Client{Timeout: d}
		}
	}
}

// New creates a worker consuming from the default queue.
func New(b broker.Broker, orch *orchestrator.Orchestrator, opts ...Option) *Worker {
	w := &Worker{
		broker:          b,
		orch:            orch,
		queue:           DefaultQueue,
		callbackTimeout: 10 * time.Second,
		client:          &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Queue returns the intake queue name the worker consumes from.
func (w *Worker) Queue() string { return w.queue }

// Submit pushes one job onto the intake queue, assigning a task id when the
// job has none. Returns the task id.
func (w *Worker) Submit(ctx context.Context, job Job) (string, error) {
	if job.TaskID == "" {
		job.TaskID = uuid.NewString()
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("submit: encode job: %w", err)
	}
	if err := w.broker.Push(ctx, w.queue, string(raw)); err != nil {
		return "", fmt.Errorf("submit: push to %s: %w", w.queue, err)
	}
	w.emitter.Emit(ctx, events.EventTaskQueued, map[string]any{
		"task_id": job.TaskID,
		"agent":   job.PersonaName,
		"source":  job.Source,
	})
	return job.TaskID, nil
}

// Run consumes jobs until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	log.Printf("[worker] consuming from %q", w.queue)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		raw, ok, err := w.broker.PopBlocking(ctx, w.queue, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[worker] pop %s: %v", w.queue, err)
			continue
		}
		if !ok {
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			log.Printf("[worker] dropping undecodable job: %v", err)
			continue
		}
		w.Process(ctx, job)
	}
}

// Process runs one job end to end.
func (w *Worker) Process(ctx context.Context, job Job) *models.OrchestrationResult {
	if job.TaskID == "" {
		job.TaskID = uuid.NewString()
	}
	if job.PersonaName == "" {
		job.PersonaName = persona.AutoRoute
	}

	agentName := job.PersonaName
	if job.UseOrchestrator {
		agentName = persona.Orchestrator
	}
	w.recordTask(ctx, job, agentName)
	w.emitter.Emit(ctx, events.EventTaskStarted, map[string]any{
		"task_id": job.TaskID,
		"agent":   job.PersonaName,
	})

	personaName := job.PersonaName
	if job.UseOrchestrator {
		personaName = persona.AutoRoute
	}
	res := w.orch.Process(ctx, orchestrator.Request{
		TaskID:      job.TaskID,
		Description: job.Task,
		PersonaName: personaName,
		TenantID:    job.TenantID,
		SessionID:   job.SessionID,
		Source:      job.Source,
	})

	w.finishTask(ctx, job.TaskID, res)
	if res.Status == models.TaskStatusFailure {
		w.emitter.Emit(ctx, events.EventTaskFailed, map[string]any{
			"task_id": job.TaskID,
			"status":  string(res.Status),
		})
	} else {
		w.emitter.Emit(ctx, events.EventTaskCompleted, map[string]any{
			"task_id": job.TaskID,
			"status":  string(res.Status),
		})
	}

	w.saveSessionMemory(ctx, job, res)
	if job.CallbackURL != "" {
		w.sendCallback(ctx, job, res)
	}
	return res
}

func (w *Worker) recordTask(ctx context.Context, job Job, agentName string) {
	if w.store == nil {
		return
	}
	err := w.store.CreateTask(ctx, &models.Task{
		TaskID:      job.TaskID,
		Description: job.Task,
		AgentName:   agentName,
		TenantID:    job.TenantID,
		SessionID:   job.SessionID,
		Status:      models.TaskStatusRunning,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		log.Printf("[worker] record task %s: %v", job.TaskID, err)
	}
}

func (w *Worker) finishTask(ctx context.Context, taskID string, res *models.OrchestrationResult) {
	if w.store == nil {
		return
	}
	err := w.store.UpdateTask(ctx, taskID, store.TaskUpdate{
		Status:        &res.Status,
		TokenUsage:    &res.TokenUsage,
		EstimatedCost: &res.EstimatedCost,
		ModelUsed:     &res.ModelUsed,
	})
	if err != nil {
		log.Printf("[worker] finish task %s: %v", taskID, err)
	}
}

// saveSessionMemory keeps the user request and agent answer as session
// turns when the job carries a session.
func (w *Worker) saveSessionMemory(ctx context.Context, job Job, res *models.OrchestrationResult) {
	if w.store == nil || job.SessionID == "" {
		return
	}
	turns := []store.Memory{
		{AgentName: res.AgentName, SessionID: job.SessionID, Role: "user", Content: job.Task},
		{AgentName: res.AgentName, SessionID: job.SessionID, Role: "assistant", Content: res.Summary},
	}
	for _, turn := range turns {
		if err := w.store.SaveMemory(ctx, turn); err != nil {
			log.Printf("[worker] session memory for %s: %v", job.SessionID, err)
		}
	}
}

// callbackPayload is the body POSTed to a job's callback URL.
type callbackPayload struct {
	TaskID        string               `json:"task_id"`
	Status        models.TaskStatus    `json:"status"`
	Summary       string               `json:"summary"`
	ExecutionMode models.ExecutionMode `json:"execution_mode"`
	AgentName     string               `json:"agent_name"`
	TokenUsage    int64                `json:"token_usage"`
	EstimatedCost float64              `json:"estimated_cost"`
}

// sendCallback POSTs the result summary. Callback failures are logged and
// emitted but never fail the task.
func (w *Worker) sendCallback(ctx context.Context, job Job, res *models.OrchestrationResult) {
	body, err := json.Marshal(callbackPayload{
		TaskID:        job.TaskID,
		Status:        res.Status,
		Summary:       res.Summary,
		ExecutionMode: res.ExecutionMode,
		AgentName:     res.AgentName,
		TokenUsage:    res.TokenUsage,
		EstimatedCost: res.EstimatedCost,
	})
	if err != nil {
		log.Printf("[worker] callback encode for %s: %v", job.TaskID, err)
		return
	}

	cctx, cancel := context.WithTimeout(ctx, w.callbackTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(cctx, http.MethodPost, job.CallbackURL, bytes.NewReader(body))
	if err != nil {
		w.callbackFailed(ctx, job, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.callbackFailed(ctx, job, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		w.callbackFailed(ctx, job, fmt.Errorf("callback returned %s", resp.Status))
		return
	}

	w.emitter.Emit(ctx, events.EventCallbackSent, map[string]any{
		"task_id": job.TaskID,
		"url":     job.CallbackURL,
	})
}

func (w *Worker) callbackFailed(ctx context.Context, job Job, err error) {
	log.Printf("[worker] callback for %s: %v", job.TaskID, err)
	w.emitter.Emit(ctx, events.EventCallbackFailed, map[string]any{
		"task_id": job.TaskID,
		"url":     job.CallbackURL,
		"error":   err.Error(),
	})
}
