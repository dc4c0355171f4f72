// Package loop runs the bounded Think→Act→Observe cycle for one (task,
// persona) pair, including recursive delegation to other personas.
package loop

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opsmind-ai/crewd/internal/decision"
	"github.com/opsmind-ai/crewd/internal/events"
	"github.com/opsmind-ai/crewd/internal/persona"
	"github.com/opsmind-ai/crewd/internal/store"
	"github.com/opsmind-ai/crewd/internal/tool"
	"github.com/opsmind-ai/crewd/pkg/models"
)

// DefaultMaxDelegationDepth bounds how deep delegation chains may recurse.
const DefaultMaxDelegationDepth = 5

// fallbackObservations is how many trailing observations the synthesized
// answer is built from when the step budget runs out.
const fallbackObservations = 3

// Request describes one execution loop invocation.
type Request struct {
	// TaskID identifies the task; assigned by the caller.
	TaskID string
	// Description is the task text.
	Description string
	// PersonaName selects the agent profile; unresolvable names fall back
	// to the generic persona, a missing fallback fails the run.
	PersonaName string
	// TenantID is the namespace the task executes under.
	TenantID string
	// SessionID scopes conversation memory; may be empty.
	SessionID string
	// ParentTaskID is set for delegated sub-tasks.
	ParentTaskID string
	// Depth is the delegation depth, 0 for top-level tasks.
	Depth int
	// Context is externally supplied delegation context appended to the
	// task text in prompts.
	Context map[string]any
}

// Loop executes tasks against a persona catalog, tool registry, and
// decision provider.
type Loop struct {
	catalog  *persona.Catalog
	tools    *tool.Registry
	provider decision.Provider
	store    store.Store
	emitter  *events.Emitter
	maxDepth int
}

// Option configures a Loop.
type Option func(*Loop)

// WithStore enables incremental persistence of steps and task records.
func WithStore(st store.Store) Option {
	return func(l *Loop) { l.store = st }
}

// WithEmitter enables lifecycle event emission.
func WithEmitter(em *events.Emitter) Option {
	return func(l *Loop) { l.emitter = em }
}

// WithMaxDelegationDepth overrides the delegation recursion ceiling.
func WithMaxDelegationDepth(depth int) Option {
	return func(l *Loop) {
		if depth > 0 {
			l.maxDepth = depth
		}
	}
}

// New creates an execution loop.
func New(catalog *persona.Catalog, tools *tool.Registry, provider decision.Provider, opts ...Option) *Loop {
	l := &Loop{
		catalog:  catalog,
		tools:    tools,
		provider: provider,
		maxDepth: DefaultMaxDelegationDepth,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Execute runs the reasoning loop for one task. Tool and delegation errors
// are absorbed into observations; only an unresolvable persona yields a
// failure result.
func (l *Loop) Execute(ctx context.Context, req Request) *models.ExecutionResult {
	start := time.Now()

	p, ok := l.catalog.Get(req.PersonaName)
	if !ok {
		return &models.ExecutionResult{
			Status: models.TaskStatusFailure,
			FinalAnswer: fmt.Sprintf(
				"No persona available for %q and no generic fallback is registered.",
				req.PersonaName),
			TotalDurationMS: time.Since(start).Milliseconds(),
		}
	}

	l.initState(ctx, req.TaskID, p)
	l.emitter.Emit(ctx, events.EventLoopStarted, map[string]any{
		"task_id":   req.TaskID,
		"agent":     p.Name,
		"max_steps": p.MaxReasoningSteps,
	})

	result := &models.ExecutionResult{Status: models.TaskStatusSuccess}
	task := req.Description
	if len(req.Context) > 0 {
		if blob, err := json.Marshal(req.Context); err == nil {
			task = fmt.Sprintf("%s\n\nAdditional context: %s", task, blob)
		}
	}

	var answer string
	toolsSeen := make(map[string]bool)

	for stepNumber := 1; stepNumber <= p.MaxReasoningSteps; stepNumber++ {
		stepStart := time.Now()
		l.setState(ctx, req.TaskID, stepNumber, models.StateThinking)
		l.emitter.Emit(ctx, events.EventStepThinking, map[string]any{
			"task_id": req.TaskID, "agent": p.Name, "step": stepNumber,
		})

		prompt := p.ConstructPrompt(persona.PromptInput{
			Task:     task,
			TenantID: req.TenantID,
			Tools:    l.tools.Definitions(p.Tools),
			History:  result.Steps,
		})

		d, usage, err := l.provider.Decide(ctx, prompt)
		if err != nil {
			log.Printf("[loop] task %s step %d: provider: %v", req.TaskID, stepNumber, err)
			d = decision.Fallback(err)
		}
		result.TokenUsage += usage.Tokens
		result.EstimatedCost += usage.Cost
		if usage.Model != "" {
			result.ModelUsed = usage.Model
		}

		step := models.ExecutionStep{
			StepNumber: stepNumber,
			Thought:    d.Thought,
			Action:     d.Action,
		}

		switch d.Action {
		case models.ActionUseTool:
			step.ActionDetail = d.ToolName
			l.setState(ctx, req.TaskID, stepNumber, models.StateActing)
			l.emitter.Emit(ctx, events.EventStepActing, map[string]any{
				"task_id": req.TaskID, "agent": p.Name, "step": stepNumber, "tool": d.ToolName,
			})
			step.Observation = l.runTool(d)
			if !toolsSeen[d.ToolName] {
				toolsSeen[d.ToolName] = true
				result.ToolsUsed = append(result.ToolsUsed, d.ToolName)
			}

		case models.ActionDelegate:
			step.ActionDetail = d.DelegateTo
			l.setState(ctx, req.TaskID, stepNumber, models.StateDelegating)
			l.emitter.Emit(ctx, events.EventStepDelegating, map[string]any{
				"task_id": req.TaskID, "agent": p.Name, "step": stepNumber, "target": d.DelegateTo,
			})
			step.Observation = l.runDelegation(ctx, req, p, d, result)

		case models.ActionFinalAnswer:
			answer = d.FinalAnswer
			step.Observation = "Final answer provided"
			l.emitter.Emit(ctx, events.EventStepFinal, map[string]any{
				"task_id": req.TaskID, "agent": p.Name, "step": stepNumber,
			})

		default:
			// Unknown actions terminate with whatever text is available.
			log.Printf("[loop] task %s step %d: unknown action %q", req.TaskID, stepNumber, d.Action)
			answer = d.FinalAnswer
			if answer == "" {
				answer = d.Thought
			}
			if answer == "" {
				answer = fmt.Sprintf("Stopped on unrecognized action %q.", d.Action)
			}
			step.Observation = "Unrecognized action treated as final answer"
		}

		step.DurationMS = time.Since(stepStart).Milliseconds()
		result.Steps = append(result.Steps, step)
		l.persistStep(ctx, req.TaskID, step)
		l.emitter.Emit(ctx, events.EventStepObserved, map[string]any{
			"task_id": req.TaskID, "agent": p.Name, "step": stepNumber, "action": string(step.Action),
		})

		if step.Action.Terminates() {
			break
		}
	}

	if answer == "" {
		answer = synthesizeAnswer(result.Steps)
	}
	result.FinalAnswer = answer
	result.TotalSteps = len(result.Steps)
	result.TotalDurationMS = time.Since(start).Milliseconds()

	l.setState(ctx, req.TaskID, result.TotalSteps, models.StateComplete)
	l.emitter.Emit(ctx, events.EventLoopCompleted, map[string]any{
		"task_id": req.TaskID,
		"agent":   p.Name,
		"steps":   result.TotalSteps,
		"status":  string(result.Status),
	})
	return result
}

// runTool executes a tool decision and renders the observation. Tool errors
// become observation text; they never abort the loop.
func (l *Loop) runTool(d decision.Decision) string {
	out, err := l.tools.Execute(d.ToolName, d.Parameters)
	if err != nil {
		return "ERROR: " + err.Error()
	}
	switch v := out.(type) {
	case string:
		return v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
}

// runDelegation allocates a child task and recursively executes it, folding
// its usage totals into the parent. Delegation failures are absorbed into
// the observation.
func (l *Loop) runDelegation(ctx context.Context, req Request, p persona.Persona, d decision.Decision, result *models.ExecutionResult) string {
	if d.DelegateTo == "" {
		return "ERROR: delegate decision named no target agent"
	}
	if req.Depth+1 > l.maxDepth {
		return fmt.Sprintf(
			"ERROR: delegation depth limit (%d) reached; refusing to delegate to %s",
			l.maxDepth, d.DelegateTo)
	}

	subTask := d.DelegateTask
	if subTask == "" {
		subTask = req.Description
	}
	childID := uuid.NewString()

	if l.store != nil {
		child := &models.Task{
			TaskID:       childID,
			Description:  subTask,
			AgentName:    d.DelegateTo,
			TenantID:     req.TenantID,
			SessionID:    req.SessionID,
			ParentTaskID: req.TaskID,
			Depth:        req.Depth + 1,
			DelegatedBy:  p.Name,
			Status:       models.TaskStatusRunning,
			CreatedAt:    time.Now(),
		}
		if err := l.store.CreateTask(ctx, child); err != nil {
			log.Printf("[loop] record sub-task %s: %v", childID, err)
		}
	}

	sub := l.Execute(ctx, Request{
		TaskID:       childID,
		Description:  subTask,
		PersonaName:  d.DelegateTo,
		TenantID:     req.TenantID,
		SessionID:    req.SessionID,
		ParentTaskID: req.TaskID,
		Depth:        req.Depth + 1,
	})

	result.TokenUsage += sub.TokenUsage
	result.EstimatedCost += sub.EstimatedCost
	l.finishTask(ctx, childID, sub)

	if sub.FinalAnswer != "" {
		return sub.FinalAnswer
	}
	raw, err := json.Marshal(sub)
	if err != nil {
		return fmt.Sprintf("Sub-task %s finished with status %s", childID, sub.Status)
	}
	return string(raw)
}

// synthesizeAnswer builds the step-exhaustion fallback from the last few
// non-empty observations.
func synthesizeAnswer(steps []models.ExecutionStep) string {
	var observations []string
	for i := len(steps) - 1; i >= 0 && len(observations) < fallbackObservations; i-- {
		if obs := strings.TrimSpace(steps[i].Observation); obs != "" {
			observations = append([]string{obs}, observations...)
		}
	}
	if len(observations) == 0 {
		return "Reached the reasoning step limit without gathering any observations."
	}
	return "Based on the gathered information: " + strings.Join(observations, " ")
}

func (l *Loop) initState(ctx context.Context, taskID string, p persona.Persona) {
	if l.store == nil {
		return
	}
	err := l.store.CreateAgentState(ctx, &models.AgentState{
		TaskID:    taskID,
		AgentName: p.Name,
		MaxSteps:  p.MaxReasoningSteps,
		Status:    models.StateThinking,
	})
	if err != nil {
		log.Printf("[loop] init state for task %s: %v", taskID, err)
	}
}

func (l *Loop) setState(ctx context.Context, taskID string, step int, status models.AgentStateStatus) {
	if l.store == nil {
		return
	}
	err := l.store.UpdateAgentState(ctx, taskID, store.AgentStateUpdate{
		CurrentStep: &step,
		Status:      &status,
	})
	if err != nil {
		log.Printf("[loop] update state for task %s: %v", taskID, err)
	}
}

func (l *Loop) persistStep(ctx context.Context, taskID string, step models.ExecutionStep) {
	if l.store == nil {
		return
	}
	if err := l.store.AppendStep(ctx, taskID, step); err != nil {
		log.Printf("[loop] persist step %d for task %s: %v", step.StepNumber, taskID, err)
	}
}

func (l *Loop) finishTask(ctx context.Context, taskID string, res *models.ExecutionResult) {
	if l.store == nil {
		return
	}
	err := l.store.UpdateTask(ctx, taskID, store.TaskUpdate{
		Status:        &res.Status,
		TokenUsage:    &res.TokenUsage,
		EstimatedCost: &res.EstimatedCost,
		ModelUsed:     &res.ModelUsed,
	})
	if err != nil {
		log.Printf("[loop] finish task %s: %v", taskID, err)
	}
}
