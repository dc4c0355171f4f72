package models

// StepAction is the action an agent chose at one step of the reasoning loop.
type StepAction string

const (
	// ActionUseTool indicates the agent invoked a tool.
	ActionUseTool StepAction = "use_tool"
	// ActionDelegate indicates the agent delegated a sub-task.
	ActionDelegate StepAction = "delegate"
	// ActionFinalAnswer indicates the agent produced its final answer.
	ActionFinalAnswer StepAction = "final_answer"
	// ActionUnknown records a decision whose action was not recognized.
	ActionUnknown StepAction = "unknown"
)

// Valid returns true if the action is a known value.
func (a StepAction) Valid() bool {
	switch a {
	case ActionUseTool, ActionDelegate, ActionFinalAnswer, ActionUnknown:
		return true
	default:
		return false
	}
}

// Terminates returns true if the action ends the reasoning loop.
func (a StepAction) Terminates() bool {
	return a != ActionUseTool && a != ActionDelegate
}

// ExecutionStep is one Think-Act-Observe cycle within a task. Steps form an
// append-only sequence: step numbers are gapless, start at 1, and a recorded
// step is never rewritten or reordered.
type ExecutionStep struct {
	// StepNumber is 1-based and strictly monotonic within a task.
	StepNumber int `json:"step"`
	// Thought is the reasoning produced before acting.
	Thought string `json:"thought"`
	// Action is what the agent decided to do.
	Action StepAction `json:"action"`
	// ActionDetail qualifies the action, e.g. "tool:inventory_check" or
	// "delegate:Finance Automation Agent".
	ActionDetail string `json:"action_detail"`
	// Observation is the result fed back into the next thinking step.
	Observation string `json:"observation"`
	// DurationMS is how long the full cycle took.
	DurationMS int64 `json:"duration_ms"`
}

// AgentStateStatus is the phase an agent is in while executing a task.
type AgentStateStatus string

const (
	// StateThinking indicates the agent is waiting on a decision.
	StateThinking AgentStateStatus = "thinking"
	// StateActing indicates the agent is executing a tool.
	StateActing AgentStateStatus = "acting"
	// StateDelegating indicates the agent is running a delegated sub-task.
	StateDelegating AgentStateStatus = "delegating"
	// StateComplete indicates the loop finished.
	StateComplete AgentStateStatus = "complete"
	// StateFailed indicates the loop aborted.
	StateFailed AgentStateStatus = "failed"
)

// AgentState tracks one agent's progress through a task. Exactly one state
// exists per task; creating it again (a retry) is not an error.
type AgentState struct {
	// TaskID identifies the task this state belongs to.
	TaskID string `json:"task_id"`
	// AgentName is the persona executing the task.
	AgentName string `json:"agent_name"`
	// CurrentStep is the step number currently in progress.
	CurrentStep int `json:"current_step"`
	// MaxSteps is the persona's reasoning step budget.
	MaxSteps int `json:"max_steps"`
	// Status is the current phase.
	Status AgentStateStatus `json:"status"`
	// ReasoningTrace is the ordered list of completed steps.
	ReasoningTrace []ExecutionStep `json:"reasoning_trace"`
	// Scratchpad holds free-form working notes.
	Scratchpad string `json:"scratchpad,omitempty"`
}
