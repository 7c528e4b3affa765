package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"lumen/internal/workspace"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	var workspaceFlag string

	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Re-enqueue failed items for the next run",
		Long: "Retry flips every failed item back to pending so the next `lumen run` picks it up. " +
			"Existing description records are kept as history.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			docPath, err := ctx.documentPath(workspaceFlag)
			if err != nil {
				return err
			}

			store := workspace.NewStore(docPath, logger)
			if err := store.Acquire(); err != nil {
				if errors.Is(err, workspace.ErrLocked) {
					return fmt.Errorf("a run is using %s; pass --retry-failed to it instead", docPath)
				}
				return err
			}
			defer store.Release()

			if _, err := store.Load(); err != nil {
				return err
			}
			requeued := 0
			if err := store.Mutate(func(doc *workspace.Document) error {
				requeued = doc.RetryFailed()
				return nil
			}); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "re-enqueued %d failed item(s)\n", requeued)
			return nil
		},
	}

	cmd.Flags().StringVar(&workspaceFlag, "workspace", "", "Workspace document path (default: workspace_dir/lumen.json)")
	return cmd
}
