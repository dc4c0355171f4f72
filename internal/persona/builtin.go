package persona

// Builtin returns a catalog populated with the stock personas. Deployments
// layer their own definitions on top via LoadDir.
func Builtin() *Catalog {
	c := NewCatalog(Generic)

	builtins := []Persona{
		{
			Name:        Orchestrator,
			Role:        "Master Task Orchestrator",
			Description: "Decomposes complex tasks into sub-tasks and delegates to specialized agents.",
			Capabilities: []string{
				"task decomposition",
				"multi-agent coordination",
				"result aggregation",
				"workflow planning",
			},
			Tools:       []string{"chat"},
			CanDelegate: true,
			DelegationTargets: []string{
				"Recruitment Agent",
				"Manufacturing Optimization Agent",
				"Finance Automation Agent",
				"Compliance Officer",
				Generic,
			},
			MaxReasoningSteps: 10,
		},
		{
			Name:        "Recruitment Agent",
			Role:        "Enterprise Recruitment Specialist",
			Description: "Expert in hiring, candidate screening, resume parsing, and talent acquisition.",
			Capabilities: []string{
				"resume analysis",
				"candidate ranking",
				"interview scheduling",
				"talent pipeline management",
			},
			Tools:             []string{"resume_analysis", "candidate_ranking"},
			MaxReasoningSteps: 5,
		},
		{
			Name:        "Manufacturing Optimization Agent",
			Role:        "Manufacturing & Supply Chain Expert",
			Description: "Expert in inventory management, supply chain optimization, and production planning.",
			Capabilities: []string{
				"inventory auditing",
				"demand forecasting",
				"supply chain optimization",
				"production scheduling",
			},
			Tools:             []string{"inventory_check", "demand_forecasting"},
			MaxReasoningSteps: 5,
		},
		{
			Name:        "Finance Automation Agent",
			Role:        "Enterprise Finance Specialist",
			Description: "Expert in financial forecasting, auditing, invoice processing, and compliance.",
			Capabilities: []string{
				"financial forecasting",
				"invoice processing",
				"audit log analysis",
				"cost optimization",
			},
			Tools:             []string{"financial_forecasting", "invoice_processing", "audit_log_check"},
			MaxReasoningSteps: 5,
		},
		{
			Name:        "Compliance Officer",
			Role:        "Enterprise Compliance Officer",
			Description: "Reviews documents for policy violations and generates compliance reports.",
			Capabilities: []string{
				"policy review",
				"compliance reporting",
				"email notifications",
				"document auditing",
			},
			Tools:             []string{"email_sender", "report_generator"},
			MaxReasoningSteps: 5,
		},
		{
			Name:        Generic,
			Role:        "General Purpose AI Assistant",
			Description: "Handles general queries, provides help, and routes users to specialized agents.",
			Capabilities: []string{
				"general conversation",
				"tool guidance",
				"task routing assistance",
			},
			Tools:             []string{"chat", "help"},
			MaxReasoningSteps: 3,
		},
	}

	for _, p := range builtins {
		if err := c.Register(p); err != nil {
			panic(err)
		}
	}
	return c
}
