package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/fedbook/fedbook/internal/audit"
	"github.com/fedbook/fedbook/internal/render"
)

func auditCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit <session_id>",
		Short: "Show a session's lifecycle events",
		Long:  "Query the lifecycle event graph for a session's recent audit events",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			requireDB()

			store := audit.NewStore(db)
			events, err := store.RecentEvents(context.Background(), args[0], limit)
			if err != nil {
				fail(err)
			}

			render.NewAudit().Events(events)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of events to show")
	return cmd
}
