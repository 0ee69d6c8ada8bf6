package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fedbook/fedbook/internal/config"
	"github.com/fedbook/fedbook/internal/selftest"
)

func doctorCmd() *cobra.Command {
	var quick bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the runtime environment",
		Long:  "Probe the kernel server, reviewer credentials, event graph and data directories",
		Run: func(cmd *cobra.Command, args []string) {
			env := config.Env()
			paths := config.GetPaths()

			doc := &selftest.Doctor{
				KernelURL:    env.KernelURL,
				GeminiKey:    env.GeminiKey,
				UploadsDir:   registry.UploadsDir(),
				NotebooksDir: paths.Notebooks,
			}
			if db != nil {
				doc.Graph = db
			}

			report := doc.Run(context.Background())

			if quick {
				fmt.Println(report.QuickLine())
			} else {
				fmt.Print(report.Summary())
			}

			if !report.Healthy() {
				os.Exit(1)
			}
		},
	}

	cmd.Flags().BoolVarP(&quick, "quick", "q", false, "One-line status output")
	return cmd
}
