package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"lumen/internal/report"
	"lumen/internal/workspace"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var workspaceFlag string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarize a workspace document",
		RunE: func(cmd *cobra.Command, args []string) error {
			docPath, err := ctx.documentPath(workspaceFlag)
			if err != nil {
				return err
			}
			doc, err := workspace.NewStore(docPath, nil).Load()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Job %s\nRoot %s\nDocument %s\n\n",
				doc.Config.JobID, doc.Config.Root, docPath)
			fmt.Fprintln(cmd.OutOrStdout(), renderSummary(report.Summarize(doc)))
			return nil
		},
	}

	cmd.Flags().StringVar(&workspaceFlag, "workspace", "", "Workspace document path (default: workspace_dir/lumen.json)")
	return cmd
}

var titleCaser = cases.Title(language.English)

// renderSummary produces the status/run summary tables.
func renderSummary(summary report.Summary) string {
	statusRows := make([][]string, 0, len(summary.ByStatus))
	for _, status := range []workspace.Status{
		workspace.StatusPending, workspace.StatusProcessing,
		workspace.StatusCompleted, workspace.StatusFailed, workspace.StatusSkipped,
	} {
		if count, ok := summary.ByStatus[status]; ok {
			statusRows = append(statusRows, []string{
				titleCaser.String(string(status)), strconv.Itoa(count),
			})
		}
	}
	statusRows = append(statusRows, []string{"Total", strconv.Itoa(summary.TotalItems)})
	out := renderTable(
		[]string{"Status", "Items"},
		statusRows,
	)

	if len(summary.ByProvider) > 0 {
		providerRows := make([][]string, 0, len(summary.ByProvider))
		for _, name := range summary.Providers() {
			stats := summary.ByProvider[name]
			providerRows = append(providerRows, []string{
				name,
				strconv.Itoa(stats.Attempts),
				strconv.Itoa(stats.Succeeded),
				strconv.Itoa(stats.Failed),
				strconv.Itoa(stats.EmptyText),
				strconv.Itoa(stats.TokensIn),
				strconv.Itoa(stats.TokensOut),
			})
		}
		out += "\n" + renderTable(
			[]string{"Provider", "Attempts", "Succeeded", "Failed", "Empty", "Tokens In", "Tokens Out"},
			providerRows,
		)
	}
	return out
}
