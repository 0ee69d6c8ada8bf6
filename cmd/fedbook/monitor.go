package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/fedbook/fedbook/internal/tui"
)

func monitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor <session_id>",
		Short: "Interactive session monitor",
		Long:  "Watch and drive a session's cells in a Bubble Tea terminal UI",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			sess, err := sessions.Get(context.Background(), args[0])
			if err != nil {
				fail(err)
			}

			if err := tui.Run(ctrl, sess); err != nil {
				fail(err)
			}
		},
	}
}
