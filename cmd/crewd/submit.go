package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/opsmind-ai/crewd/internal/persona"
	"github.com/opsmind-ai/crewd/internal/worker"
	"github.com/opsmind-ai/crewd/pkg/models"
)

var (
	submitPersona   string
	submitTenant    string
	submitSession   string
	submitCallback  string
	submitQueueOnly bool
)

var submitCmd = &cobra.Command{
	Use:   "submit [task description]",
	Short: "Submit a task to the crew",
	Long: `Submits one task. By default the task runs in-process and the result is
printed; with --queue the job is pushed onto the intake queue for a running
worker instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		job := worker.Job{
			Task:        strings.Join(args, " "),
			PersonaName: submitPersona,
			TenantID:    submitTenant,
			SessionID:   submitSession,
			CallbackURL: submitCallback,
			Source:      "cli",
		}

		if submitQueueOnly {
			taskID, err := svc.worker.Submit(cmd.Context(), job)
			if err != nil {
				return err
			}
			fmt.Printf("%s queued task %s\n", color.GreenString("✓"), taskID)
			return nil
		}

		res := svc.worker.Process(cmd.Context(), job)
		printResult(res)
		return nil
	},
}

func printResult(res *models.OrchestrationResult) {
	statusColor := color.GreenString
	if res.Status != models.TaskStatusSuccess {
		statusColor = color.YellowString
	}
	fmt.Printf("\n%s %s (%s, agent: %s)\n\n", statusColor("●"), res.Status, res.ExecutionMode, res.AgentName)
	fmt.Println(res.Summary)

	if len(res.SubTaskResults) > 0 {
		fmt.Printf("\nSub-tasks:\n")
		for i, sub := range res.SubTaskResults {
			fmt.Printf("  %d. [%s] %s — %s (%d steps)\n",
				i+1, sub.Status, sub.Agent, sub.Description, sub.Steps)
		}
	}
	fmt.Printf("\nmodel: %s  tokens: %d  cost: $%.4f  duration: %dms\n",
		res.ModelUsed, res.TokenUsage, res.EstimatedCost, res.TotalDurationMS)
}

func init() {
	submitCmd.Flags().StringVarP(&submitPersona, "persona", "p", persona.AutoRoute, "Persona to route the task to")
	submitCmd.Flags().StringVarP(&submitTenant, "tenant", "t", "default", "Tenant the task executes under")
	submitCmd.Flags().StringVarP(&submitSession, "session", "s", "", "Session id for conversation memory")
	submitCmd.Flags().StringVar(&submitCallback, "callback", "", "URL to POST the result to")
	submitCmd.Flags().BoolVar(&submitQueueOnly, "queue", false, "Queue the job for a running worker instead of executing inline")
}
