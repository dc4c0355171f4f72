package models

// ExecutionMode records how the orchestrator routed a task.
type ExecutionMode string

const (
	// ModeSingleAgent means the task ran through one execution loop.
	ModeSingleAgent ExecutionMode = "single_agent"
	// ModeMultiAgent means the task was decomposed and fanned out.
	ModeMultiAgent ExecutionMode = "multi_agent"
)

// ExecutionResult is the outcome of one execution loop run.
type ExecutionResult struct {
	// Status is success unless the persona could not be resolved or an
	// infrastructure error aborted the loop.
	Status TaskStatus `json:"status"`
	// FinalAnswer is the agent's answer; always non-empty on return, even
	// when synthesized from observations after step exhaustion.
	FinalAnswer string `json:"final_answer"`
	// Steps is the full ordered reasoning trace.
	Steps []ExecutionStep `json:"steps"`
	// TotalSteps is len(Steps).
	TotalSteps int `json:"total_steps"`
	// TotalDurationMS is wall-clock time for the whole loop.
	TotalDurationMS int64 `json:"total_duration_ms"`
	// ToolsUsed lists tool names invoked, in order of first use.
	ToolsUsed []string `json:"tools_used"`
	// ModelUsed is the last model that produced a decision.
	ModelUsed string `json:"model_used"`
	// TokenUsage includes all descendant sub-task usage.
	TokenUsage int64 `json:"token_usage"`
	// EstimatedCost includes all descendant sub-task cost.
	EstimatedCost float64 `json:"estimated_cost"`
}

// SubTaskResult summarizes one delegated sub-task within an orchestration.
type SubTaskResult struct {
	// SubTaskID is the child task's id.
	SubTaskID string `json:"sub_task_id"`
	// Agent is the persona the sub-task ran under.
	Agent string `json:"agent"`
	// Description is the sub-task text.
	Description string `json:"description"`
	// Status is the sub-task's terminal status.
	Status TaskStatus `json:"status"`
	// Result is the sub-task's final answer.
	Result string `json:"result"`
	// Steps is how many reasoning steps the sub-task took.
	Steps int `json:"steps"`
	// DurationMS is the sub-task's wall-clock time.
	DurationMS int64 `json:"duration_ms"`
}

// OrchestrationResult is the outcome of processing a submitted task.
type OrchestrationResult struct {
	// Status is success, failure, or partial_success.
	Status TaskStatus `json:"status"`
	// Summary is the aggregated answer returned to the caller.
	Summary string `json:"summary"`
	// ExecutionMode records single-agent vs multi-agent routing.
	ExecutionMode ExecutionMode `json:"execution_mode"`
	// AgentName is the persona (or "Orchestrator") that owned the task.
	AgentName string `json:"agent_name"`
	// SubTaskResults is empty for single-agent runs.
	SubTaskResults []SubTaskResult `json:"sub_task_results"`
	// ExecutionTrace is the step trace for single-agent runs.
	ExecutionTrace []ExecutionStep `json:"execution_trace"`
	// ModelUsed lists the distinct models used, comma separated.
	ModelUsed string `json:"model_used"`
	// TokenUsage is the total across the task tree.
	TokenUsage int64 `json:"token_usage"`
	// EstimatedCost is the total across the task tree.
	EstimatedCost float64 `json:"estimated_cost"`
	// TotalDurationMS is wall-clock time for the whole orchestration.
	TotalDurationMS int64 `json:"total_duration_ms"`
}
