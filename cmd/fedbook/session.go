package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fedbook/fedbook/internal/render"
)

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Training session management",
		Long:  "Create and inspect federated training sessions",
	}

	// fedbook session create <name>
	var notebookName string
	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new training session",
		Long: `Create a training session with its own notebook file.

Examples:
  fedbook session create diabetes-study
  fedbook session create trial-7 --notebook model.ipynb`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			sess, err := sessions.Create(context.Background(), args[0], notebookName)
			if err != nil {
				fail(err)
			}

			fmt.Printf("✓ Session created: %s\n", sess.ID)
			fmt.Printf("  Notebook: %s\n", sess.NotebookPath)
			fmt.Println()
			fmt.Printf("  Add a cell:  fedbook cell add %s\n", sess.ID)
			fmt.Printf("  Monitor:     fedbook monitor %s\n", sess.ID)
		},
	}
	createCmd.Flags().StringVarP(&notebookName, "notebook", "N", "", "Notebook file name")

	// fedbook session list
	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent sessions",
		Run: func(cmd *cobra.Command, args []string) {
			list, err := sessions.List(context.Background(), limit)
			if err != nil {
				fail(err)
			}

			r := render.New(pretty)
			fmt.Print(r.Sessions(list))
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of sessions to show")

	// fedbook session show <id>
	showCmd := &cobra.Command{
		Use:   "show <session_id>",
		Short: "Show one session with its cells",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			sess, err := sessions.Get(ctx, args[0])
			if err != nil {
				fail(err)
			}

			fmt.Printf("SESSION: %s\n", sess.ID)
			fmt.Printf("  Name:     %s\n", sess.Name)
			fmt.Printf("  Notebook: %s\n", sess.NotebookPath)
			fmt.Printf("  Datasets: %s\n", strings.Join(sess.DatasetFolders, ", "))
			fmt.Printf("  Created:  %s\n", sess.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Println()

			cells, err := ctrl.Cells(ctx, sess.ID)
			if err != nil {
				fail(err)
			}

			r := render.New(pretty)
			fmt.Print(r.Cells(cells))
		},
	}

	// fedbook session datasets <id> <folder>...
	datasetsCmd := &cobra.Command{
		Use:   "datasets <session_id> [folder...]",
		Short: "Set the provider folders the session trains against",
		Long: `Bind provider dataset folders to a session. Folder names must
exist under the uploads directory; the policy reviewer treats them as
protected.`,
		Args: cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			folders := args[1:]

			if err := registry.Validate(folders); err != nil {
				fail(err)
			}
			if err := sessions.SetDatasetFolders(context.Background(), args[0], folders); err != nil {
				fail(err)
			}

			fmt.Printf("✓ Datasets bound: %s\n", strings.Join(folders, ", "))
		},
	}

	cmd.AddCommand(createCmd, listCmd, showCmd, datasetsCmd)
	return cmd
}

func datasetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "datasets",
		Short: "List provider dataset folders",
		Run: func(cmd *cobra.Command, args []string) {
			folders, err := registry.List()
			if err != nil {
				fail(err)
			}

			r := render.New(pretty)
			fmt.Print(r.Datasets(folders))
		},
	}
}
