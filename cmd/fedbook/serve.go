package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fedbook/fedbook/internal/api"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Serve the training API over HTTP.

Endpoints include /sessions, /sessions/{id}/cells, cell execute and
review, /datasets, /metrics and /health.`,
		Run: func(cmd *cobra.Command, args []string) {
			srv := api.New(sessions, ctrl, registry, addr)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Printf("fedbook API listening on %s\n", addr)
			if err := srv.Serve(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fail(err)
			}
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "Listen address")
	return cmd
}
