package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List the registered personas",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		for _, p := range svc.catalog.All() {
			marker := " "
			if p.CanDelegate {
				marker = color.CyanString("▸")
			}
			fmt.Printf("%s %s — %s (steps: %d)\n", marker, color.New(color.Bold).Sprint(p.Name), p.Role, p.MaxReasoningSteps)
			if len(p.Tools) > 0 {
				fmt.Printf("    tools: %s\n", strings.Join(p.Tools, ", "))
			}
			if p.CanDelegate && len(p.DelegationTargets) > 0 {
				fmt.Printf("    delegates to: %s\n", strings.Join(p.DelegationTargets, ", "))
			}
		}
		return nil
	},
}
