package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the task intake worker",
	Long: `Starts a worker that pops submitted jobs from the intake queue and
processes them through the orchestrator until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Printf("%s worker started (queue %q, broker %q)\n",
			color.GreenString("✓"), svc.worker.Queue(), svc.cfg.Broker.Kind)

		if err := svc.worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		fmt.Printf("%s worker stopped\n", color.YellowString("⚠"))
		return nil
	},
}
