package persona

import (
	"encoding/json"
	"strings"

	"github.com/opsmind-ai/crewd/internal/tool"
	"github.com/opsmind-ai/crewd/pkg/models"
)

// PromptInput carries everything needed to render a reasoning prompt.
type PromptInput struct {
	// Task is the task description.
	Task string
	// TenantID is the namespace the task executes under.
	TenantID string
	// Tools are the definitions resolved for this persona only.
	Tools []tool.Definition
	// History is the full ordered list of completed steps.
	History []models.ExecutionStep
}

// promptTemplate is the reasoning prompt shape. Placeholders are substituted
// by ConstructPrompt; the decision schema at the bottom matches the decision
// package's parser.
const promptTemplate = `You are {name}, a {role}.
Your capabilities are: {capabilities}.
You are operating in the context of tenant: {tenant_id}.

{delegation_instructions}

Available Tools:
{tool_definitions}

Task: {task}

Previous reasoning steps:
{reasoning_history}

You must respond with a JSON object strictly following this schema:
{
  "thought": "string (your reasoning about what to do next)",
  "action": "string (one of: 'use_tool', 'delegate', 'final_answer')",
  "tool_name": "string (name of the tool to use, required if action='use_tool')",
  "delegate_to": "string (agent name, required if action='delegate')",
  "delegate_task": "string (sub-task description, required if action='delegate')",
  "parameters": { },
  "final_answer": "string (your final response, required if action='final_answer')"
}`

// ConstructPrompt renders the full reasoning prompt for one step of the loop.
func (p Persona) ConstructPrompt(in PromptInput) string {
	toolJSON, err := json.MarshalIndent(in.Tools, "", "  ")
	if err != nil {
		toolJSON = []byte("[]")
	}

	replacer := strings.NewReplacer(
		"{name}", p.Name,
		"{role}", p.Role,
		"{capabilities}", strings.Join(p.Capabilities, ", "),
		"{tenant_id}", in.TenantID,
		"{delegation_instructions}", p.delegationHint(),
		"{tool_definitions}", string(toolJSON),
		"{task}", in.Task,
		"{reasoning_history}", historyLines(in.History),
	)
	return replacer.Replace(promptTemplate)
}
