package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/opsmind-ai/crewd/internal/tool"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the registered tools",
	Run: func(cmd *cobra.Command, args []string) {
		registry := tool.Builtin()
		for _, def := range registry.All() {
			fmt.Printf("%s — %s\n", color.New(color.Bold).Sprint(def.Name), def.Description)
			if required := def.RequiredParams(); len(required) > 0 {
				fmt.Printf("    required: %s\n", strings.Join(required, ", "))
			}
		}
	},
}
