package decision

import (
	"context"
	"strings"

	"github.com/opsmind-ai/crewd/pkg/models"
)

// MockModel is the model name reported by the mock provider.
const MockModel = "mock"

// mockCostPerToken mirrors the flat estimate used before real pricing data.
const mockCostPerToken = 0.00003

// Mock is a deterministic keyword-driven Provider. It is the default when
// no API key is configured and the base for test stubs.
type Mock struct{}

// NewMock creates a mock provider.
func NewMock() *Mock { return &Mock{} }

// mockToolRoute maps a prompt keyword to a canned use_tool decision.
type mockToolRoute struct {
	keyword string
	tool    string
	params  map[string]any
}

// Routes are checked in order so behavior is stable across runs.
var mockToolRoutes = []mockToolRoute{
	{"inventory", "inventory_check", map[string]any{"business_unit": "Global Operations"}},
	{"stock", "inventory_check", map[string]any{"business_unit": "Global Operations"}},
	{"demand", "demand_forecasting", map[string]any{}},
	{"forecast", "financial_forecasting", map[string]any{}},
	{"invoice", "invoice_processing", map[string]any{}},
	{"audit", "audit_log_check", map[string]any{}},
	{"resume", "resume_analysis", map[string]any{"candidate_name": "Candidate"}},
	{"candidate", "candidate_ranking", map[string]any{}},
	{"email", "email_sender", map[string]any{"recipient": "admin@enterprise.com", "subject": "Notification"}},
	{"report", "report_generator", map[string]any{"report_name": "Enterprise Report"}},
}

// mockDomain maps a task keyword to the specialized agent that owns it.
type mockDomain struct {
	keyword string
	agent   string
	work    string
}

var mockDomains = []mockDomain{
	{"recruitment", "Recruitment Agent", "Handle recruitment-related aspects"},
	{"hiring", "Recruitment Agent", "Handle hiring-related aspects"},
	{"resume", "Recruitment Agent", "Analyze resumes"},
	{"candidate", "Recruitment Agent", "Evaluate candidates"},
	{"inventory", "Manufacturing Optimization Agent", "Check inventory levels"},
	{"manufacturing", "Manufacturing Optimization Agent", "Optimize manufacturing processes"},
	{"supply", "Manufacturing Optimization Agent", "Analyze supply chain"},
	{"forecast", "Finance Automation Agent", "Generate financial forecasts"},
	{"finance", "Finance Automation Agent", "Handle financial analysis"},
	{"invoice", "Finance Automation Agent", "Process invoices"},
	{"audit", "Finance Automation Agent", "Perform audit checks"},
	{"compliance", "Compliance Officer", "Review compliance requirements"},
	{"report", "Compliance Officer", "Generate compliance reports"},
	{"email", "Compliance Officer", "Send email notifications"},
}

// estimateTokens approximates token count from text length.
func estimateTokens(text string) int64 {
	n := int64(len(text) / 4)
	if n < 50 {
		n = 50
	}
	return n
}

func mockUsage(prompt string) Usage {
	tokens := estimateTokens(prompt)
	return Usage{
		Model:  MockModel,
		Tokens: tokens,
		Cost:   float64(tokens) * mockCostPerToken,
	}
}

// Decide produces a canned decision from prompt keywords: a matching tool
// route wins; a prompt that already carries step history gets a final
// answer; everything else gets a generic final answer.
func (m *Mock) Decide(_ context.Context, prompt string) (Decision, Usage, error) {
	lower := strings.ToLower(prompt)

	for _, route := range mockToolRoutes {
		if strings.Contains(lower, route.keyword) {
			return Decision{
				Thought:    "The task involves '" + route.keyword + "', which maps to the '" + route.tool + "' tool.",
				Action:     models.ActionUseTool,
				ToolName:   route.tool,
				Parameters: route.params,
			}, mockUsage(prompt), nil
		}
	}

	if strings.Contains(lower, "observation:") || strings.Contains(lower, "step 1:") {
		return Decision{
			Thought:     "Enough information has been gathered from previous steps.",
			Action:      models.ActionFinalAnswer,
			FinalAnswer: "Task has been processed successfully based on the gathered information.",
		}, mockUsage(prompt), nil
	}

	return Decision{
		Thought:     "This is a general query.",
		Action:      models.ActionFinalAnswer,
		FinalAnswer: "I can help with enterprise tasks including recruitment, manufacturing, finance, and compliance.",
	}, mockUsage(prompt), nil
}

// Decompose classifies a task by counting distinct agent domains mentioned
// in its text: two or more produces a multi-agent plan; one routes directly;
// none routes to the generic assistant.
func (m *Mock) Decompose(_ context.Context, task string, _ []string) (Decomposition, Usage, error) {
	lower := strings.ToLower(task)

	seen := make(map[string]bool)
	var subTasks []SubTaskSpec
	for _, d := range mockDomains {
		if !strings.Contains(lower, d.keyword) || seen[d.agent] {
			continue
		}
		// Agents outside the caller's list are kept; the execution
		// loop's persona fallback absorbs unknown targets.
		seen[d.agent] = true
		subTasks = append(subTasks, SubTaskSpec{
			Description: d.work + " for this task",
			TargetAgent: d.agent,
			Priority:    len(subTasks) + 1,
		})
	}

	usage := mockUsage(task)
	switch len(subTasks) {
	case 0:
		return Decomposition{
			Reasoning:   "General task, routing to the generic assistant.",
			DirectAgent: "General Assistant",
		}, usage, nil
	case 1:
		return Decomposition{
			Reasoning:   "Task can be handled by a single specialized agent.",
			DirectAgent: subTasks[0].TargetAgent,
		}, usage, nil
	default:
		return Decomposition{
			IsComplex: true,
			Reasoning: "Task spans multiple domains requiring different specialized agents.",
			SubTasks:  subTasks,
		}, usage, nil
	}
}

// Summarize produces a deterministic aggregate answer.
func (m *Mock) Summarize(_ context.Context, task string, outcomes []models.SubTaskResult) (string, Usage, error) {
	var b strings.Builder
	b.WriteString("Task completed. ")
	for i, o := range outcomes {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(o.Agent + ": " + o.Result)
	}
	return b.String(), mockUsage(task), nil
}
