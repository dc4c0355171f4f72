package decision

import (
	"encoding/json"
	"fmt"

	"github.com/opsmind-ai/crewd/pkg/models"
)

// decomposePrompt asks the model to classify complexity and plan sub-tasks.
func decomposePrompt(task string, agents []string) string {
	agentJSON, _ := json.Marshal(agents)
	return fmt.Sprintf(`You are a Task Orchestrator. Analyze the following task and determine
if it is complex enough to require multiple agents, or if a single agent can handle it.

Available specialized agents: %s

Task: %s

Respond with JSON:
{
  "is_complex": true/false,
  "reasoning": "why this is or isn't complex",
  "sub_tasks": [
    {
      "sub_task_description": "specific sub-task",
      "target_agent": "agent name from the available list",
      "priority": 1
    }
  ],
  "direct_agent": "agent name (if not complex, route to this single agent)"
}`, agentJSON, task)
}

// summarizePrompt asks the model to condense sub-task outcomes.
func summarizePrompt(task string, outcomes []models.SubTaskResult) string {
	resultJSON, _ := json.MarshalIndent(outcomes, "", "  ")
	return fmt.Sprintf(`Summarize these results from multiple agents into a cohesive response.

Original task: %s

Results:
%s

Provide a clear, concise summary that addresses the original task.
Respond with JSON: {"summary": "your summary here"}`, task, resultJSON)
}
