package loop

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/opsmind-ai/crewd/internal/decision"
	"github.com/opsmind-ai/crewd/internal/persona"
	"github.com/opsmind-ai/crewd/internal/store"
	"github.com/opsmind-ai/crewd/internal/tool"
	"github.com/opsmind-ai/crewd/pkg/models"
)

// scriptProvider replays a fixed sequence of decisions, one per Decide call.
type scriptProvider struct {
	decisions []decision.Decision
	errs      []error
	calls     int
}

func (s *scriptProvider) Decide(_ context.Context, _ string) (decision.Decision, decision.Usage, error) {
	i := s.calls
	s.calls++
	usage := decision.Usage{Model: "scripted", Tokens: 10, Cost: 0.001}
	if i < len(s.errs) && s.errs[i] != nil {
		return decision.Decision{}, usage, s.errs[i]
	}
	if i >= len(s.decisions) {
		return decision.Decision{
			Action:      models.ActionFinalAnswer,
			FinalAnswer: "script exhausted",
		}, usage, nil
	}
	return s.decisions[i], usage, nil
}

func (s *scriptProvider) Decompose(_ context.Context, _ string, _ []string) (decision.Decomposition, decision.Usage, error) {
	return decision.Decomposition{}, decision.Usage{}, nil
}

func (s *scriptProvider) Summarize(_ context.Context, _ string, _ []models.SubTaskResult) (string, decision.Usage, error) {
	return "", decision.Usage{}, nil
}

func testCatalog(t *testing.T) *persona.Catalog {
	t.Helper()
	c := persona.NewCatalog(persona.Generic)
	personas := []persona.Persona{
		{Name: persona.Generic, Role: "generalist", MaxReasoningSteps: 3, Tools: []string{"chat"}},
		{Name: "Finance Automation Agent", Role: "finance", MaxReasoningSteps: 5,
			Tools: []string{"invoice_processing"}},
		{Name: "Lead", Role: "coordinator", MaxReasoningSteps: 4, CanDelegate: true,
			DelegationTargets: []string{"Finance Automation Agent"}},
	}
	for _, p := range personas {
		if err := c.Register(p); err != nil {
			t.Fatalf("register %s: %v", p.Name, err)
		}
	}
	return c
}

func newTestLoop(t *testing.T, p decision.Provider) (*Loop, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	l := New(testCatalog(t), tool.Builtin(), p, WithStore(st))
	return l, st
}

func TestExecuteFinalAnswerFirstStep(t *testing.T) {
	provider := &scriptProvider{decisions: []decision.Decision{
		{Thought: "trivial", Action: models.ActionFinalAnswer, FinalAnswer: "2+2=4"},
	}}
	l, st := newTestLoop(t, provider)

	res := l.Execute(context.Background(), Request{
		TaskID: "t-1", Description: "what is 2+2", PersonaName: persona.Generic, TenantID: "acme",
	})

	if res.Status != models.TaskStatusSuccess || res.FinalAnswer != "2+2=4" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.TotalSteps != 1 || len(res.Steps) != 1 {
		t.Errorf("expected exactly one step, got %d", res.TotalSteps)
	}

	persisted, err := st.Steps(context.Background(), "t-1")
	if err != nil || len(persisted) != 1 {
		t.Errorf("expected one persisted step, got %d (%v)", len(persisted), err)
	}
}

func TestExecuteToolErrorIsNonFatal(t *testing.T) {
	provider := &scriptProvider{decisions: []decision.Decision{
		// Missing the required business_unit parameter.
		{Thought: "check stock", Action: models.ActionUseTool, ToolName: "inventory_check"},
		{Thought: "give up gracefully", Action: models.ActionFinalAnswer, FinalAnswer: "could not check"},
	}}
	l, _ := newTestLoop(t, provider)

	res := l.Execute(context.Background(), Request{
		TaskID: "t-2", Description: "check inventory", PersonaName: persona.Generic, TenantID: "acme",
	})

	if res.Status != models.TaskStatusSuccess {
		t.Fatalf("tool errors must not fail the task, got %+v", res)
	}
	if len(res.Steps) != 2 {
		t.Fatalf("expected loop to continue past the tool error, got %d steps", len(res.Steps))
	}
	if !strings.HasPrefix(res.Steps[0].Observation, "ERROR:") {
		t.Errorf("tool error should surface in the observation, got %q", res.Steps[0].Observation)
	}
}

func TestExecuteDelegation(t *testing.T) {
	provider := &scriptProvider{decisions: []decision.Decision{
		{Thought: "needs finance", Action: models.ActionDelegate,
			DelegateTo: "Finance Automation Agent", DelegateTask: "total the invoices"},
		// Consumed by the child loop.
		{Thought: "done", Action: models.ActionFinalAnswer, FinalAnswer: "invoices total $12k"},
		// Back in the parent.
		{Thought: "relay", Action: models.ActionFinalAnswer, FinalAnswer: "finance says $12k"},
	}}
	l, st := newTestLoop(t, provider)

	res := l.Execute(context.Background(), Request{
		TaskID: "t-parent", Description: "summarize finances", PersonaName: "Lead", TenantID: "acme",
	})

	if res.FinalAnswer != "finance says $12k" {
		t.Fatalf("unexpected answer: %q", res.FinalAnswer)
	}
	if res.Steps[0].Observation != "invoices total $12k" {
		t.Errorf("delegation observation should be the child's answer, got %q", res.Steps[0].Observation)
	}
	// 3 provider calls at 10 tokens each; the child's usage folds into the parent.
	if res.TokenUsage != 30 {
		t.Errorf("expected folded token usage 30, got %d", res.TokenUsage)
	}

	var child *models.Task
	for _, task := range allTasks(t, st) {
		if task.ParentTaskID == "t-parent" {
			child = task
		}
	}
	if child == nil {
		t.Fatal("expected a child task record")
	}
	if child.Depth != 1 || child.DelegatedBy != "Lead" {
		t.Errorf("unexpected child task: %+v", child)
	}
	if child.Status != models.TaskStatusSuccess {
		t.Errorf("child task should be marked success, got %s", child.Status)
	}
}

func TestExecuteDelegationDepthCeiling(t *testing.T) {
	provider := &scriptProvider{decisions: []decision.Decision{
		{Thought: "delegate down", Action: models.ActionDelegate,
			DelegateTo: "Finance Automation Agent", DelegateTask: "dig deeper"},
		{Thought: "wrap up", Action: models.ActionFinalAnswer, FinalAnswer: "stopped"},
	}}
	st := store.NewMemoryStore()
	l := New(testCatalog(t), tool.Builtin(), provider, WithStore(st), WithMaxDelegationDepth(2))

	res := l.Execute(context.Background(), Request{
		TaskID: "t-deep", Description: "recurse", PersonaName: "Lead", TenantID: "acme", Depth: 2,
	})

	if !strings.Contains(res.Steps[0].Observation, "depth limit") {
		t.Errorf("expected a depth refusal observation, got %q", res.Steps[0].Observation)
	}
	if len(allTasks(t, st)) != 0 {
		t.Error("no child task may be created past the depth ceiling")
	}
}

func TestExecuteStepExhaustion(t *testing.T) {
	provider := &scriptProvider{decisions: []decision.Decision{
		{Thought: "chat 1", Action: models.ActionUseTool, ToolName: "chat",
			Parameters: map[string]any{"message": "hi"}},
		{Thought: "chat 2", Action: models.ActionUseTool, ToolName: "chat",
			Parameters: map[string]any{"message": "hi again"}},
		{Thought: "chat 3", Action: models.ActionUseTool, ToolName: "chat",
			Parameters: map[string]any{"message": "still here"}},
	}}
	l, _ := newTestLoop(t, provider)

	res := l.Execute(context.Background(), Request{
		TaskID: "t-exhaust", Description: "chatter", PersonaName: persona.Generic, TenantID: "acme",
	})

	if res.TotalSteps != 3 {
		t.Fatalf("loop must stop at the persona's step budget, got %d steps", res.TotalSteps)
	}
	if !strings.HasPrefix(res.FinalAnswer, "Based on the gathered information:") {
		t.Errorf("expected synthesized fallback answer, got %q", res.FinalAnswer)
	}
	for i, step := range res.Steps {
		if step.StepNumber != i+1 {
			t.Errorf("step numbers must be gapless and 1-based, got %d at index %d", step.StepNumber, i)
		}
	}
	if len(res.ToolsUsed) != 1 || res.ToolsUsed[0] != "chat" {
		t.Errorf("tools used should deduplicate, got %v", res.ToolsUsed)
	}
}

func TestExecuteProviderFailureFallsBack(t *testing.T) {
	provider := &scriptProvider{errs: []error{errors.New("connection refused")}}
	l, _ := newTestLoop(t, provider)

	res := l.Execute(context.Background(), Request{
		TaskID: "t-down", Description: "anything", PersonaName: persona.Generic, TenantID: "acme",
	})

	if res.Status != models.TaskStatusSuccess {
		t.Fatalf("provider outages degrade, not fail: %+v", res)
	}
	if res.TotalSteps != 1 || res.FinalAnswer == "" {
		t.Errorf("expected one terminal fallback step, got %+v", res)
	}
}

func TestExecuteUnknownPersonaWithoutFallback(t *testing.T) {
	empty := persona.NewCatalog(persona.Generic)
	l := New(empty, tool.Builtin(), &scriptProvider{})

	res := l.Execute(context.Background(), Request{
		TaskID: "t-nobody", Description: "anything", PersonaName: "Ghost", TenantID: "acme",
	})

	if res.Status != models.TaskStatusFailure {
		t.Fatalf("expected failure without any resolvable persona, got %+v", res)
	}
	if len(res.Steps) != 0 {
		t.Errorf("no steps may be recorded on persona failure, got %d", len(res.Steps))
	}
}

func TestExecuteUnknownActionTerminates(t *testing.T) {
	provider := &scriptProvider{decisions: []decision.Decision{
		{Thought: "confused", Action: models.StepAction("shrug")},
	}}
	l, _ := newTestLoop(t, provider)

	res := l.Execute(context.Background(), Request{
		TaskID: "t-odd", Description: "anything", PersonaName: persona.Generic, TenantID: "acme",
	})

	if res.TotalSteps != 1 {
		t.Fatalf("unknown action must terminate the loop, got %d steps", res.TotalSteps)
	}
	if res.FinalAnswer != "confused" {
		t.Errorf("expected the thought as the implicit answer, got %q", res.FinalAnswer)
	}
}

func allTasks(t *testing.T, st *store.MemoryStore) []*models.Task {
	t.Helper()
	return st.Tasks()
}
