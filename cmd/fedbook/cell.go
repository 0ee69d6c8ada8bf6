package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fedbook/fedbook/internal/domain"
	"github.com/fedbook/fedbook/internal/render"
)

func cellCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cell",
		Short: "Notebook cell operations",
		Long:  "Add, edit, review and execute notebook cells",
	}

	// fedbook cell add <session_id>
	var kind string
	var code string
	addCmd := &cobra.Command{
		Use:   "add <session_id>",
		Short: "Add a cell to a session",
		Long: `Add a cell. Code comes from --code or stdin.

Examples:
  fedbook cell add 01J5... --code "import pandas as pd"
  cat analysis.py | fedbook cell add 01J5...
  fedbook cell add 01J5... --kind markdown --code "# Results"`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			cell, err := ctrl.AddCell(ctx, args[0], domain.CellKind(kind))
			if err != nil {
				fail(err)
			}

			if code == "" && !isTerminal(os.Stdin) {
				data, readErr := io.ReadAll(os.Stdin)
				if readErr == nil {
					code = string(data)
				}
			}
			if code != "" {
				if err := ctrl.UpdateCellCode(ctx, args[0], cell.ID, code); err != nil {
					fail(err)
				}
			}

			fmt.Printf("✓ Cell added: %s (position %d)\n", cell.ID, cell.Position)
		},
	}
	addCmd.Flags().StringVarP(&kind, "kind", "k", "code", "Cell kind (code or markdown)")
	addCmd.Flags().StringVarP(&code, "code", "c", "", "Cell source")

	// fedbook cell list <session_id>
	listCmd := &cobra.Command{
		Use:   "list <session_id>",
		Short: "List a session's cells",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cells, err := ctrl.Cells(context.Background(), args[0])
			if err != nil {
				fail(err)
			}

			r := render.New(pretty)
			fmt.Print(r.Cells(cells))
		},
	}

	// fedbook cell show <session_id> <cell_id>
	showCmd := &cobra.Command{
		Use:   "show <session_id> <cell_id>",
		Short: "Show one cell with full output",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			cell, err := ctrl.Cell(context.Background(), args[0], args[1])
			if err != nil {
				fail(err)
			}

			r := render.New(pretty)
			fmt.Print(r.Cell(cell))
		},
	}

	// fedbook cell edit <session_id> <cell_id>
	var newCode string
	editCmd := &cobra.Command{
		Use:   "edit <session_id> <cell_id>",
		Short: "Replace a cell's source",
		Long: `Replace a cell's source. Any earlier verdict or output is
discarded; the cell returns to pending.`,
		Args: cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			if newCode == "" && !isTerminal(os.Stdin) {
				data, err := io.ReadAll(os.Stdin)
				if err == nil {
					newCode = string(data)
				}
			}

			if err := ctrl.UpdateCellCode(context.Background(), args[0], args[1], newCode); err != nil {
				fail(err)
			}

			fmt.Println("✓ Cell updated (back to pending)")
		},
	}
	editCmd.Flags().StringVarP(&newCode, "code", "c", "", "New cell source")

	// fedbook cell exec <session_id> <cell_id>
	execCmd := &cobra.Command{
		Use:   "exec <session_id> <cell_id>",
		Short: "Review and execute a code cell",
		Long: `Run the full pipeline for one cell: policy review, notebook
synchronization, kernel execution. Rejected cells never reach the
kernel.`,
		Args: cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			cell, err := ctrl.ExecuteCell(context.Background(), args[0], args[1])

			var rejErr *domain.RejectionError
			if errors.As(err, &rejErr) {
				fmt.Printf("⊘ Rejected: %s\n", rejErr.Reason)
				os.Exit(2)
			}
			if err != nil {
				fail(err)
			}

			r := render.New(pretty)
			fmt.Print(r.Cell(cell))
		},
	}

	// fedbook cell review <session_id> <cell_id>...
	reviewCmd := &cobra.Command{
		Use:   "review <session_id> [cell_id...]",
		Short: "Review cells without executing them",
		Long: `Send cells through policy review only. With no cell IDs, all
code cells in the session are reviewed.`,
		Args: cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			ids := args[1:]

			if len(ids) == 0 {
				cells, err := ctrl.Cells(ctx, args[0])
				if err != nil {
					fail(err)
				}
				for _, c := range cells {
					if c.Kind == domain.KindCode {
						ids = append(ids, c.ID)
					}
				}
			}

			results, err := ctrl.ReviewCells(ctx, args[0], ids)
			if err != nil {
				fail(err)
			}

			for _, res := range results {
				switch {
				case res.Err != "":
					fmt.Printf("! %s: %s\n", res.CellID, res.Err)
				case res.Approved:
					fmt.Printf("✓ %s: approved\n", res.CellID)
				default:
					fmt.Printf("⊘ %s: %s\n", res.CellID, res.Reason)
				}
			}
		},
	}

	// fedbook cell delete <session_id> <cell_id>
	deleteCmd := &cobra.Command{
		Use:   "delete <session_id> <cell_id>",
		Short: "Delete a cell",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			if err := ctrl.DeleteCell(context.Background(), args[0], args[1]); err != nil {
				fail(err)
			}
			fmt.Println("✓ Cell deleted")
		},
	}

	cmd.AddCommand(addCmd, listCmd, showCmd, editCmd, execCmd, reviewCmd, deleteCmd)
	return cmd
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
