// Package main provides the fedbook CLI entrypoint.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fedbook/fedbook/internal/audit"
	"github.com/fedbook/fedbook/internal/config"
	"github.com/fedbook/fedbook/internal/controller"
	"github.com/fedbook/fedbook/internal/datasets"
	"github.com/fedbook/fedbook/internal/graph"
	"github.com/fedbook/fedbook/internal/kernel"
	"github.com/fedbook/fedbook/internal/policy"
	"github.com/fedbook/fedbook/internal/session"
	"github.com/fedbook/fedbook/internal/store"
)

var (
	version = "0.1.0"

	db          graph.Driver
	st          *store.Store
	auditLogger *audit.Logger
	ctrl        *controller.Controller
	sessions    *session.Manager
	registry    *datasets.Registry
	pretty      = true
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fedbook",
		Short: "Federated training notebook service",
		Long: `fedbook: policy-gated notebook execution for federated training.

Researchers edit notebook cells against provider datasets they cannot
inspect. Every code cell passes an automated policy review before it
reaches the kernel; rejected cells never execute.

Use 'fedbook session create' to start, 'fedbook serve' for the HTTP API.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			paths := config.GetPaths()
			for _, dir := range []string{paths.Data, paths.Notebooks, paths.Audit} {
				if err := config.EnsureDir(dir); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
					os.Exit(1)
				}
			}

			var err error
			st, err = store.New(paths.Data)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: open store: %v\n", err)
				os.Exit(1)
			}

			// Connect to graph (lazy, may fail)
			if g := graph.Connect(); g != nil {
				db = g
			}

			var opts []audit.LoggerOption
			if db != nil {
				opts = append(opts, audit.WithStore(audit.NewStore(db)))
			}
			auditLogger = audit.NewLogger(opts...)
			audit.SetGlobal(auditLogger)

			env := config.Env()
			reviewer := policy.NewGemini(env.GeminiKey, env.GeminiModel)
			runner := kernel.NewClient(env.KernelURL)

			ctrl = controller.New(st, reviewer, runner,
				controller.WithAuditLogger(auditLogger),
				controller.WithTimeouts(env.ReviewTimeout, env.ExecTimeout),
			)
			sessions = session.NewManager(st, paths.Notebooks, session.WithAuditLogger(auditLogger))

			uploads := env.UploadsDir
			if uploads == "" {
				uploads = config.Path("uploads")
			}
			registry = datasets.NewRegistry(uploads)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if st != nil {
				st.Close()
			}
			if db != nil {
				db.Close()
			}
		},
	}

	defaultPretty := term.IsTerminal(int(os.Stdout.Fd()))
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", defaultPretty, "Pretty print output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "notebook", Title: "Notebook:"},
		&cobra.Group{ID: "runtime", Title: "Runtime:"},
	)

	sess := sessionCmd()
	sess.GroupID = "notebook"
	rootCmd.AddCommand(sess)

	cell := cellCmd()
	cell.GroupID = "notebook"
	rootCmd.AddCommand(cell)

	ds := datasetsCmd()
	ds.GroupID = "notebook"
	rootCmd.AddCommand(ds)

	kern := kernelCmd()
	kern.GroupID = "runtime"
	rootCmd.AddCommand(kern)

	serve := serveCmd()
	serve.GroupID = "runtime"
	rootCmd.AddCommand(serve)

	mon := monitorCmd()
	mon.GroupID = "runtime"
	rootCmd.AddCommand(mon)

	auditC := auditCmd()
	auditC.GroupID = "runtime"
	rootCmd.AddCommand(auditC)

	doc := doctorCmd()
	doc.GroupID = "runtime"
	rootCmd.AddCommand(doc)

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(statusCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show fedbook version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("fedbook version %s\n", version)
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show service status",
		Run: func(cmd *cobra.Command, args []string) {
			env := config.Env()

			graphState := "disconnected"
			if db != nil {
				if err := db.Ping(context.Background()); err == nil {
					graphState = "connected"
				}
			}

			reviewerState := "not configured"
			if env.GeminiKey != "" {
				reviewerState = env.GeminiModel
			}

			sessCount := 0
			if list, err := sessions.List(context.Background(), 1000); err == nil {
				sessCount = len(list)
			}

			fmt.Println("FEDBOOK STATUS")
			fmt.Println()
			fmt.Printf("  Reviewer:  %s\n", reviewerState)
			fmt.Printf("  Kernel:    %s\n", env.KernelURL)
			fmt.Printf("  Graph:     %s\n", graphState)
			fmt.Printf("  Uploads:   %s\n", registry.UploadsDir())
			fmt.Printf("  Sessions:  %d\n", sessCount)
		},
	}
}
