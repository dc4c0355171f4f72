// Package orchestrator is the single entry point for submitted tasks. It
// decides between direct single-agent execution and decomposed multi-agent
// fan-out, and aggregates the results.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opsmind-ai/crewd/internal/bus"
	"github.com/opsmind-ai/crewd/internal/decision"
	"github.com/opsmind-ai/crewd/internal/events"
	"github.com/opsmind-ai/crewd/internal/loop"
	"github.com/opsmind-ai/crewd/internal/persona"
	"github.com/opsmind-ai/crewd/internal/store"
	"github.com/opsmind-ai/crewd/pkg/models"
)

// Request is one submitted task.
type Request struct {
	// TaskID identifies the task; assigned by the caller.
	TaskID string
	// Description is the task text.
	Description string
	// PersonaName is the requested agent, or an auto-route sentinel.
	PersonaName string
	// TenantID is the namespace the task executes under.
	TenantID string
	// SessionID scopes conversation memory; may be empty.
	SessionID string
	// Source records where the task came from (api, cli, queue).
	Source string
}

// Orchestrator routes tasks to execution loops.
type Orchestrator struct {
	catalog  *persona.Catalog
	provider decision.Provider
	loop     *loop.Loop
	bus      *bus.Bus
	store    store.Store
	emitter  *events.Emitter
}

// New creates an orchestrator. Store, bus, and emitter may be nil; the
// corresponding side effects are then skipped.
func New(catalog *persona.Catalog, provider decision.Provider, l *loop.Loop, b *bus.Bus, st store.Store, em *events.Emitter) *Orchestrator {
	return &Orchestrator{
		catalog:  catalog,
		provider: provider,
		loop:     l,
		bus:      b,
		store:    st,
		emitter:  em,
	}
}

// Process runs one submitted task end to end and returns the aggregated
// result.
func (o *Orchestrator) Process(ctx context.Context, req Request) *models.OrchestrationResult {
	start := time.Now()
	o.emitter.Emit(ctx, events.EventOrchestratorStarted, map[string]any{
		"task_id": req.TaskID,
		"agent":   req.PersonaName,
		"source":  req.Source,
	})

	if !o.shouldDecompose(req.PersonaName) {
		return o.runSingle(ctx, req, req.PersonaName, start)
	}

	o.emitter.Emit(ctx, events.EventOrchestratorAnalyzing, map[string]any{"task_id": req.TaskID})
	plan, usage, err := o.provider.Decompose(ctx, req.Description, o.catalog.NonDelegating())
	if err != nil {
		// Degrade to direct generic execution rather than failing the task.
		log.Printf("[orchestrator] task %s: decompose: %v", req.TaskID, err)
		plan = decision.Decomposition{DirectAgent: persona.Generic}
	}
	o.emitter.Emit(ctx, events.EventOrchestratorPlanReady, map[string]any{
		"task_id":    req.TaskID,
		"is_complex": plan.IsComplex,
		"sub_tasks":  len(plan.SubTasks),
	})

	// An empty plan is "not complex" regardless of the flag.
	if !plan.IsComplex || len(plan.SubTasks) == 0 {
		agent := plan.DirectAgent
		if agent == "" {
			agent = persona.Generic
		}
		res := o.runSingle(ctx, req, agent, start)
		res.TokenUsage += usage.Tokens
		res.EstimatedCost += usage.Cost
		return res
	}

	return o.runMultiAgent(ctx, req, plan, usage, start)
}

// shouldDecompose applies the routing rule: auto-route sentinels and
// delegating personas go through decomposition.
func (o *Orchestrator) shouldDecompose(name string) bool {
	if persona.IsAutoRoute(name) {
		return true
	}
	p, ok := o.catalog.Lookup(name)
	return ok && p.CanDelegate
}

// runSingle wraps one execution loop run as a single-agent orchestration.
func (o *Orchestrator) runSingle(ctx context.Context, req Request, agentName string, start time.Time) *models.OrchestrationResult {
	o.emitter.Emit(ctx, events.EventOrchestratorSingleAgent, map[string]any{
		"task_id": req.TaskID,
		"agent":   agentName,
	})

	res := o.loop.Execute(ctx, loop.Request{
		TaskID:      req.TaskID,
		Description: req.Description,
		PersonaName: agentName,
		TenantID:    req.TenantID,
		SessionID:   req.SessionID,
	})

	resolved, _ := o.catalog.Get(agentName)
	out := &models.OrchestrationResult{
		Status:          res.Status,
		Summary:         res.FinalAnswer,
		ExecutionMode:   models.ModeSingleAgent,
		AgentName:       resolved.Name,
		ExecutionTrace:  res.Steps,
		ModelUsed:       res.ModelUsed,
		TokenUsage:      res.TokenUsage,
		EstimatedCost:   res.EstimatedCost,
		TotalDurationMS: time.Since(start).Milliseconds(),
	}
	o.emitCompleted(ctx, req.TaskID, out)
	return out
}

// runMultiAgent fans the decomposition plan out to its target agents,
// sequentially and in priority order, then aggregates.
func (o *Orchestrator) runMultiAgent(ctx context.Context, req Request, plan decision.Decomposition, decomposeUsage decision.Usage, start time.Time) *models.OrchestrationResult {
	o.emitter.Emit(ctx, events.EventOrchestratorMultiAgent, map[string]any{
		"task_id":   req.TaskID,
		"sub_tasks": len(plan.SubTasks),
	})

	subTasks := make([]decision.SubTaskSpec, len(plan.SubTasks))
	copy(subTasks, plan.SubTasks)
	sort.SliceStable(subTasks, func(i, j int) bool { return subTasks[i].Priority < subTasks[j].Priority })

	o.seedContext(ctx, req)

	out := &models.OrchestrationResult{
		ExecutionMode: models.ModeMultiAgent,
		AgentName:     persona.Orchestrator,
		TokenUsage:    decomposeUsage.Tokens,
		EstimatedCost: decomposeUsage.Cost,
	}
	used := newModelSet(decomposeUsage.Model)
	allSucceeded := true

	for i, sub := range subTasks {
		childID := uuid.NewString()
		o.emitter.Emit(ctx, events.EventSubTaskStarted, map[string]any{
			"task_id":     req.TaskID,
			"sub_task_id": childID,
			"agent":       sub.TargetAgent,
			"order":       i + 1,
		})

		o.recordChild(ctx, req, childID, sub)
		if o.bus != nil {
			_, err := o.bus.Delegate(ctx, persona.Orchestrator, sub.TargetAgent,
				sub.Description, req.TaskID, map[string]any{"tenant_id": req.TenantID})
			if err != nil {
				log.Printf("[orchestrator] task %s: delegate message: %v", req.TaskID, err)
			}
		}

		res := o.loop.Execute(ctx, loop.Request{
			TaskID:       childID,
			Description:  sub.Description,
			PersonaName:  sub.TargetAgent,
			TenantID:     req.TenantID,
			SessionID:    req.SessionID,
			ParentTaskID: req.TaskID,
			Depth:        1,
		})

		o.finishChild(ctx, childID, res)
		if o.bus != nil {
			_, err := o.bus.ReportResult(ctx, sub.TargetAgent, persona.Orchestrator,
				childID, res, res.Status)
			if err != nil {
				log.Printf("[orchestrator] task %s: result message: %v", req.TaskID, err)
			}
			contextKey := fmt.Sprintf("sub_result_%d_%s", i+1, sub.TargetAgent)
			if err := o.bus.SetSharedContext(ctx, req.TaskID, contextKey, res.FinalAnswer); err != nil {
				log.Printf("[orchestrator] task %s: context write: %v", req.TaskID, err)
			}
		}

		out.TokenUsage += res.TokenUsage
		out.EstimatedCost += res.EstimatedCost
		used.add(res.ModelUsed)
		if res.Status != models.TaskStatusSuccess {
			allSucceeded = false
		}

		out.SubTaskResults = append(out.SubTaskResults, models.SubTaskResult{
			SubTaskID:   childID,
			Agent:       sub.TargetAgent,
			Description: sub.Description,
			Status:      res.Status,
			Result:      res.FinalAnswer,
			Steps:       res.TotalSteps,
			DurationMS:  res.TotalDurationMS,
		})
		o.emitter.Emit(ctx, events.EventSubTaskCompleted, map[string]any{
			"task_id":     req.TaskID,
			"sub_task_id": childID,
			"agent":       sub.TargetAgent,
			"status":      string(res.Status),
		})
	}

	o.emitter.Emit(ctx, events.EventOrchestratorAggregating, map[string]any{"task_id": req.TaskID})
	summary, usage, err := o.provider.Summarize(ctx, req.Description, out.SubTaskResults)
	if err != nil || summary == "" {
		if err != nil {
			log.Printf("[orchestrator] task %s: summarize: %v", req.TaskID, err)
		}
		summary = joinOutcomes(out.SubTaskResults)
	}
	out.TokenUsage += usage.Tokens
	out.EstimatedCost += usage.Cost
	used.add(usage.Model)

	out.Summary = summary
	out.ModelUsed = used.String()
	if allSucceeded {
		out.Status = models.TaskStatusSuccess
	} else {
		out.Status = models.TaskStatusPartialSuccess
	}
	out.TotalDurationMS = time.Since(start).Milliseconds()

	o.emitCompleted(ctx, req.TaskID, out)
	return out
}

// seedContext makes the original task visible to every fan-out child.
func (o *Orchestrator) seedContext(ctx context.Context, req Request) {
	if o.bus == nil {
		return
	}
	if err := o.bus.SetSharedContext(ctx, req.TaskID, "original_task", req.Description); err != nil {
		log.Printf("[orchestrator] task %s: seed context: %v", req.TaskID, err)
	}
	if err := o.bus.SetSharedContext(ctx, req.TaskID, "tenant_id", req.TenantID); err != nil {
		log.Printf("[orchestrator] task %s: seed context: %v", req.TaskID, err)
	}
}

func (o *Orchestrator) recordChild(ctx context.Context, req Request, childID string, sub decision.SubTaskSpec) {
	if o.store == nil {
		return
	}
	err := o.store.CreateTask(ctx, &models.Task{
		TaskID:       childID,
		Description:  sub.Description,
		AgentName:    sub.TargetAgent,
		TenantID:     req.TenantID,
		SessionID:    req.SessionID,
		ParentTaskID: req.TaskID,
		Depth:        1,
		DelegatedBy:  persona.Orchestrator,
		Status:       models.TaskStatusRunning,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		log.Printf("[orchestrator] record sub-task %s: %v", childID, err)
	}
}

func (o *Orchestrator) finishChild(ctx context.Context, childID string, res *models.ExecutionResult) {
	if o.store == nil {
		return
	}
	err := o.store.UpdateTask(ctx, childID, store.TaskUpdate{
		Status:        &res.Status,
		TokenUsage:    &res.TokenUsage,
		EstimatedCost: &res.EstimatedCost,
		ModelUsed:     &res.ModelUsed,
	})
	if err != nil {
		log.Printf("[orchestrator] finish sub-task %s: %v", childID, err)
	}
}

func (o *Orchestrator) emitCompleted(ctx context.Context, taskID string, res *models.OrchestrationResult) {
	o.emitter.Emit(ctx, events.EventOrchestratorCompleted, map[string]any{
		"task_id":        taskID,
		"status":         string(res.Status),
		"execution_mode": string(res.ExecutionMode),
		"token_usage":    res.TokenUsage,
	})
}

// joinOutcomes is the summarization fallback when the provider is down or
// returns nothing.
func joinOutcomes(results []models.SubTaskResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Agent, r.Result))
	}
	return strings.Join(parts, "\n")
}

// modelSet collects distinct model names in first-seen order.
type modelSet struct {
	seen  map[string]bool
	order []string
}

func newModelSet(initial string) *modelSet {
	s := &modelSet{seen: make(map[string]bool)}
	s.add(initial)
	return s
}

func (s *modelSet) add(model string) {
	if model == "" || s.seen[model] {
		return
	}
	s.seen[model] = true
	s.order = append(s.order, model)
}

func (s *modelSet) String() string {
	return strings.Join(s.order, ",")
}
