package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/opsmind-ai/crewd/internal/broker"
	"github.com/opsmind-ai/crewd/internal/bus"
	"github.com/opsmind-ai/crewd/internal/decision"
	"github.com/opsmind-ai/crewd/internal/loop"
	"github.com/opsmind-ai/crewd/internal/persona"
	"github.com/opsmind-ai/crewd/internal/store"
	"github.com/opsmind-ai/crewd/internal/tool"
	"github.com/opsmind-ai/crewd/pkg/models"
)

// stubProvider answers every Decide with a canned final answer and returns
// fixed decomposition and summary payloads.
type stubProvider struct {
	plan    decision.Decomposition
	summary string
	answer  string
}

func (s *stubProvider) Decide(_ context.Context, _ string) (decision.Decision, decision.Usage, error) {
	return decision.Decision{
		Thought:     "answering",
		Action:      models.ActionFinalAnswer,
		FinalAnswer: s.answer,
	}, decision.Usage{Model: "stub", Tokens: 10, Cost: 0.001}, nil
}

func (s *stubProvider) Decompose(_ context.Context, _ string, _ []string) (decision.Decomposition, decision.Usage, error) {
	return s.plan, decision.Usage{Model: "stub", Tokens: 20, Cost: 0.002}, nil
}

func (s *stubProvider) Summarize(_ context.Context, _ string, _ []models.SubTaskResult) (string, decision.Usage, error) {
	return s.summary, decision.Usage{Model: "stub", Tokens: 5, Cost: 0.0005}, nil
}

type fixture struct {
	orch   *Orchestrator
	bus    *bus.Bus
	store  *store.MemoryStore
	broker *broker.Memory
}

func newFixture(t *testing.T, provider decision.Provider, withFallback bool) *fixture {
	t.Helper()
	catalog := persona.NewCatalog(persona.Generic)
	personas := []persona.Persona{
		{Name: persona.Orchestrator, Role: "coordinator", MaxReasoningSteps: 10, CanDelegate: true,
			DelegationTargets: []string{"Finance Automation Agent", "Compliance Officer Agent"}},
		{Name: "Finance Automation Agent", Role: "finance", MaxReasoningSteps: 5},
		{Name: "Compliance Officer Agent", Role: "compliance", MaxReasoningSteps: 5},
	}
	if withFallback {
		personas = append(personas, persona.Persona{
			Name: persona.Generic, Role: "generalist", MaxReasoningSteps: 3,
		})
	}
	for _, p := range personas {
		if err := catalog.Register(p); err != nil {
			t.Fatalf("register %s: %v", p.Name, err)
		}
	}

	mem := broker.NewMemory()
	t.Cleanup(func() { mem.Close() })
	st := store.NewMemoryStore()
	b := bus.New(mem, st, nil)
	l := loop.New(catalog, tool.Builtin(), provider, loop.WithStore(st))

	return &fixture{
		orch:   New(catalog, provider, l, b, st, nil),
		bus:    b,
		store:  st,
		broker: mem,
	}
}

func TestProcessMultiAgent(t *testing.T) {
	provider := &stubProvider{
		plan: decision.Decomposition{
			IsComplex: true,
			Reasoning: "spans finance and compliance",
			SubTasks: []decision.SubTaskSpec{
				{Description: "audit the logs", TargetAgent: "Compliance Officer Agent", Priority: 2},
				{Description: "process the invoices", TargetAgent: "Finance Automation Agent", Priority: 1},
			},
		},
		summary: "invoices processed and logs audited",
		answer:  "sub-task done",
	}
	f := newFixture(t, provider, true)
	ctx := context.Background()

	res := f.orch.Process(ctx, Request{
		TaskID:      "t-multi",
		Description: "process invoices and audit the logs",
		PersonaName: persona.AutoRoute,
		TenantID:    "acme",
		Source:      "test",
	})

	if res.Status != models.TaskStatusSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.ExecutionMode != models.ModeMultiAgent || res.AgentName != persona.Orchestrator {
		t.Errorf("unexpected routing: mode=%s agent=%s", res.ExecutionMode, res.AgentName)
	}
	if res.Summary != "invoices processed and logs audited" {
		t.Errorf("unexpected summary: %q", res.Summary)
	}
	if len(res.SubTaskResults) != 2 {
		t.Fatalf("expected 2 sub-task results, got %d", len(res.SubTaskResults))
	}
	// Priority 1 runs before priority 2.
	if res.SubTaskResults[0].Agent != "Finance Automation Agent" {
		t.Errorf("sub-tasks must run in priority order, got %s first", res.SubTaskResults[0].Agent)
	}

	// Shared context carries the seed keys and one result per sub-task.
	sharedCtx, err := f.bus.SharedContext(ctx, "t-multi")
	if err != nil {
		t.Fatalf("shared context: %v", err)
	}
	if sharedCtx["original_task"] != "process invoices and audit the logs" || sharedCtx["tenant_id"] != "acme" {
		t.Errorf("missing seed context: %+v", sharedCtx)
	}
	if sharedCtx["sub_result_1_Finance Automation Agent"] != "sub-task done" {
		t.Errorf("missing sub result key: %+v", sharedCtx)
	}

	// Each sub-task leaves a child task record and a delegate+result message pair.
	children := 0
	for _, task := range f.store.Tasks() {
		if task.ParentTaskID == "t-multi" {
			children++
			if task.Depth != 1 || task.DelegatedBy != persona.Orchestrator {
				t.Errorf("unexpected child record: %+v", task)
			}
		}
	}
	if children != 2 {
		t.Errorf("expected 2 child task records, got %d", children)
	}
	delegates, results := 0, 0
	for _, msg := range f.store.Messages() {
		switch msg.Type {
		case models.MessageDelegate:
			delegates++
		case models.MessageResult:
			results++
		}
	}
	if delegates != 2 || results != 2 {
		t.Errorf("expected 2 delegate and 2 result messages, got %d/%d", delegates, results)
	}

	// Decompose (20) + 2 loop decisions (10 each) + summarize (5).
	if res.TokenUsage != 45 {
		t.Errorf("expected accumulated token usage 45, got %d", res.TokenUsage)
	}
}

func TestProcessSingleAgentDirect(t *testing.T) {
	provider := &stubProvider{answer: "invoices processed"}
	f := newFixture(t, provider, true)

	res := f.orch.Process(context.Background(), Request{
		TaskID:      "t-single",
		Description: "process the invoices",
		PersonaName: "Finance Automation Agent",
		TenantID:    "acme",
	})

	if res.ExecutionMode != models.ModeSingleAgent {
		t.Fatalf("named non-delegating persona must route directly, got %s", res.ExecutionMode)
	}
	if res.AgentName != "Finance Automation Agent" || res.Summary != "invoices processed" {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(res.SubTaskResults) != 0 || len(res.ExecutionTrace) != 1 {
		t.Errorf("expected a bare trace, got %d sub-results / %d steps",
			len(res.SubTaskResults), len(res.ExecutionTrace))
	}
}

func TestProcessAutoRouteNotComplex(t *testing.T) {
	provider := &stubProvider{
		plan:   decision.Decomposition{IsComplex: false, DirectAgent: "Finance Automation Agent"},
		answer: "handled directly",
	}
	f := newFixture(t, provider, true)

	res := f.orch.Process(context.Background(), Request{
		TaskID:      "t-auto",
		Description: "forecast revenue",
		PersonaName: persona.AutoRoute,
		TenantID:    "acme",
	})

	if res.ExecutionMode != models.ModeSingleAgent || res.AgentName != "Finance Automation Agent" {
		t.Errorf("expected direct routing to the classified agent, got %+v", res)
	}
	// Loop decision (10) plus the decompose call (20).
	if res.TokenUsage != 30 {
		t.Errorf("decomposition usage must fold into the result, got %d", res.TokenUsage)
	}
}

func TestProcessEmptySubTasksIsNotComplex(t *testing.T) {
	provider := &stubProvider{
		plan:   decision.Decomposition{IsComplex: true, DirectAgent: "Compliance Officer Agent"},
		answer: "done",
	}
	f := newFixture(t, provider, true)

	res := f.orch.Process(context.Background(), Request{
		TaskID:      "t-empty-plan",
		Description: "audit",
		PersonaName: persona.AutoRoute,
		TenantID:    "acme",
	})

	if res.ExecutionMode != models.ModeSingleAgent {
		t.Errorf("complex flag with no sub-tasks must route single-agent, got %s", res.ExecutionMode)
	}
}

func TestProcessUnknownTargetFallsBack(t *testing.T) {
	provider := &stubProvider{
		plan: decision.Decomposition{
			IsComplex: true,
			SubTasks: []decision.SubTaskSpec{
				{Description: "do something odd", TargetAgent: "Mystery Agent", Priority: 1},
			},
		},
		summary: "handled",
		answer:  "generic handled it",
	}
	f := newFixture(t, provider, true)

	res := f.orch.Process(context.Background(), Request{
		TaskID:      "t-mystery",
		Description: "odd request",
		PersonaName: persona.AutoRoute,
		TenantID:    "acme",
	})

	if res.Status != models.TaskStatusSuccess {
		t.Fatalf("unknown targets are absorbed by the persona fallback, got %+v", res)
	}
	if len(res.SubTaskResults) != 1 || res.SubTaskResults[0].Result != "generic handled it" {
		t.Errorf("unexpected sub-task results: %+v", res.SubTaskResults)
	}
}

func TestProcessPartialSuccess(t *testing.T) {
	provider := &stubProvider{
		plan: decision.Decomposition{
			IsComplex: true,
			SubTasks: []decision.SubTaskSpec{
				{Description: "works", TargetAgent: "Finance Automation Agent", Priority: 1},
				{Description: "cannot resolve", TargetAgent: "Mystery Agent", Priority: 2},
			},
		},
		summary: "mixed outcome",
		answer:  "fine",
	}
	// No generic fallback registered: the unknown target fails its loop run.
	f := newFixture(t, provider, false)

	res := f.orch.Process(context.Background(), Request{
		TaskID:      "t-partial",
		Description: "mixed work",
		PersonaName: persona.AutoRoute,
		TenantID:    "acme",
	})

	if res.Status != models.TaskStatusPartialSuccess {
		t.Fatalf("expected partial_success with one failed sub-task, got %s", res.Status)
	}
	var failed bool
	for _, sub := range res.SubTaskResults {
		if sub.Status == models.TaskStatusFailure {
			failed = true
		}
	}
	if !failed {
		t.Error("expected one failed sub-task result")
	}
	if !strings.Contains(res.Summary, "mixed") {
		t.Errorf("summary should come from the provider, got %q", res.Summary)
	}
}
