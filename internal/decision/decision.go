// Package decision defines the boundary to the natural-language decision
// engine. The core consumes structured decisions; how they are produced
// (hosted model or deterministic mock) is behind the Provider interface.
package decision

import (
	"context"
	"fmt"

	"github.com/opsmind-ai/crewd/pkg/models"
)

// Decision is the structured next-action choice for one reasoning step.
// Fields beyond Thought and Action are populated per-variant: ToolName and
// Parameters for use_tool, DelegateTo and DelegateTask for delegate,
// FinalAnswer for final_answer.
type Decision struct {
	Thought      string            `json:"thought"`
	Action       models.StepAction `json:"action"`
	ToolName     string            `json:"tool_name,omitempty"`
	Parameters   map[string]any    `json:"parameters,omitempty"`
	DelegateTo   string            `json:"delegate_to,omitempty"`
	DelegateTask string            `json:"delegate_task,omitempty"`
	FinalAnswer  string            `json:"final_answer,omitempty"`
}

// Validate checks the per-variant required fields.
func (d Decision) Validate() error {
	switch d.Action {
	case models.ActionUseTool:
		if d.ToolName == "" {
			return fmt.Errorf("use_tool decision has no tool_name")
		}
	case models.ActionDelegate:
		if d.DelegateTo == "" {
			return fmt.Errorf("delegate decision has no delegate_to")
		}
	case models.ActionFinalAnswer:
		if d.FinalAnswer == "" {
			return fmt.Errorf("final_answer decision has no final_answer")
		}
	}
	return nil
}

// Usage is provider metadata captured alongside each decision.
type Usage struct {
	// Model identifies the model that produced the decision.
	Model string `json:"model"`
	// Tokens is the total token count for the call.
	Tokens int64 `json:"tokens"`
	// Cost is the estimated cost in dollars.
	Cost float64 `json:"cost"`
	// LatencyMS is the round-trip time of the call.
	LatencyMS int64 `json:"latency_ms"`
}

// SubTaskSpec is one entry of a decomposition plan.
type SubTaskSpec struct {
	// Description is the sub-task text handed to the target agent.
	Description string `json:"sub_task_description"`
	// TargetAgent names the persona the sub-task is routed to.
	TargetAgent string `json:"target_agent"`
	// Priority orders sub-tasks; lower runs first.
	Priority int `json:"priority"`
}

// Decomposition is the provider's complexity classification for a task.
// An empty SubTasks list means "not complex" regardless of IsComplex.
type Decomposition struct {
	IsComplex   bool          `json:"is_complex"`
	Reasoning   string        `json:"reasoning"`
	SubTasks    []SubTaskSpec `json:"sub_tasks"`
	DirectAgent string        `json:"direct_agent"`
}

// Provider maps prompts to structured decisions. Implementations must not
// let transport or parse failures escape: a failed call degrades to a
// deterministic final_answer decision via Fallback.
type Provider interface {
	// Decide returns the next-action decision for a reasoning prompt.
	Decide(ctx context.Context, prompt string) (Decision, Usage, error)
	// Decompose classifies task complexity against the available agents.
	Decompose(ctx context.Context, task string, agents []string) (Decomposition, Usage, error)
	// Summarize condenses sub-task outcomes into one answer for the caller.
	Summarize(ctx context.Context, task string, outcomes []models.SubTaskResult) (string, Usage, error)
}

// Fallback is the deterministic decision substituted when a provider call
// fails outright. It terminates the step rather than propagating the error.
func Fallback(err error) Decision {
	return Decision{
		Thought:     fmt.Sprintf("Decision provider unavailable: %v", err),
		Action:      models.ActionFinalAnswer,
		FinalAnswer: "Unable to reach the decision engine; stopping with the information gathered so far.",
	}
}
