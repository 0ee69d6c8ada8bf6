package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func kernelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kernel",
		Short: "Kernel lifecycle",
	}

	// fedbook kernel shutdown <session_id>
	shutdownCmd := &cobra.Command{
		Use:   "shutdown <session_id>",
		Short: "Shut down a session's kernel",
		Long:  "Stop the session's Python kernel. Safe when no kernel is running.",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := ctrl.ShutdownKernel(context.Background(), args[0]); err != nil {
				fail(err)
			}
			fmt.Println("✓ Kernel shut down")
		},
	}

	cmd.AddCommand(shutdownCmd)
	return cmd
}
