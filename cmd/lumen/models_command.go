package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const modelsProbeTimeout = 15 * time.Second

func newModelsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models offered by each configured provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			registry, _, err := buildRegistry(cfg, logger)
			if err != nil {
				return err
			}
			if registry.Len() == 0 {
				return fmt.Errorf("no providers enabled; enable at least one in the config file")
			}

			probeCtx, cancel := context.WithTimeout(cmd.Context(), modelsProbeTimeout)
			defer cancel()

			rows := make([][]string, 0, registry.Len())
			for _, prov := range registry.Providers() {
				available := "yes"
				if err := prov.Available(probeCtx); err != nil {
					available = fmt.Sprintf("no (%v)", err)
				}
				models, err := prov.ListModels(probeCtx)
				listing := strings.Join(models, ", ")
				if err != nil {
					listing = fmt.Sprintf("error: %v", err)
				} else if listing == "" {
					listing = "(none)"
				}
				rows = append(rows, []string{prov.Name(), available, listing})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Provider", "Available", "Models"},
				rows,
			))
			return nil
		},
	}
	return cmd
}
