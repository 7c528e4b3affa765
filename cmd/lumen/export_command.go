package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lumen/internal/report"
	"lumen/internal/workspace"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var (
		workspaceFlag string
		outputFlag    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the workspace document as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			docPath, err := ctx.documentPath(workspaceFlag)
			if err != nil {
				return err
			}
			doc, err := workspace.NewStore(docPath, nil).Load()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outputFlag != "" {
				f, err := os.Create(outputFlag)
				if err != nil {
					return fmt.Errorf("create %s: %w", outputFlag, err)
				}
				defer f.Close()
				out = f
			}
			return report.WriteCSV(doc, out)
		},
	}

	cmd.Flags().StringVar(&workspaceFlag, "workspace", "", "Workspace document path (default: workspace_dir/lumen.json)")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Write CSV to a file instead of stdout")
	return cmd
}
