package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"lumen/internal/config"
	"lumen/internal/convert"
	"lumen/internal/discovery"
	"lumen/internal/engine"
	"lumen/internal/enrich"
	"lumen/internal/logging"
	"lumen/internal/report"
	"lumen/internal/services"
	"lumen/internal/workspace"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		workspaceFlag   string
		recursiveFlag   bool
		workersFlag     int
		providersFlag   []string
		typesFlag       []string
		retryFailedFlag bool
	)

	cmd := &cobra.Command{
		Use:   "run [root]",
		Short: "Create or resume a description job for a media tree",
		Long: "Run walks the media tree, converts HEIC files and videos into describable images, " +
			"and sends every image through the configured vision providers. Progress is persisted " +
			"after every step, so an interrupted run resumes where it left off.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			registry, providerOptions, err := buildRegistry(cfg, logger)
			if err != nil {
				return err
			}
			registry, err = filterProviders(registry, providersFlag)
			if err != nil {
				return err
			}
			if registry.Len() == 0 {
				return errors.New("no providers selected; enable one in the config or adjust --providers")
			}

			docPath, err := ctx.documentPath(workspaceFlag)
			if err != nil {
				return err
			}
			store := workspace.NewStore(docPath, logger)
			if err := store.Acquire(); err != nil {
				if errors.Is(err, workspace.ErrLocked) {
					return fmt.Errorf("another lumen run is using %s", docPath)
				}
				return err
			}
			defer store.Release()

			recursive := recursiveFlag || cfg.Discovery.Recursive
			types := typesFlag
			if len(types) == 0 {
				types = cfg.Discovery.Types
			}
			workers := workersFlag
			if workers <= 0 {
				workers = cfg.Workflow.Workers
			}

			var doc *workspace.Document
			created := false
			if store.Exists() {
				doc, err = store.Load()
				if err != nil {
					return err
				}
				if len(args) > 0 && args[0] != doc.Config.Root {
					logger.Warn("document was created for a different root; using the snapshot",
						logging.String("snapshot_root", doc.Config.Root),
						logging.String("requested_root", args[0]))
				}
				// The snapshot pins the provider set: a resumed run must not
				// silently switch backends for the remaining items.
				if len(doc.Config.Providers) > 0 {
					requested := strings.Join(registry.Names(), ",")
					registry, err = filterProviders(registry, doc.Config.Providers)
					if err != nil {
						return err
					}
					if registry.Len() == 0 {
						return fmt.Errorf("none of the job's providers (%s) are enabled; enable one or start a new workspace",
							strings.Join(doc.Config.Providers, ", "))
					}
					if got := strings.Join(registry.Names(), ","); got != strings.Join(doc.Config.Providers, ",") || got != requested {
						logger.Warn("provider selection differs from the snapshot; using the snapshot",
							logging.String("snapshot_providers", strings.Join(doc.Config.Providers, ",")),
							logging.String("requested_providers", requested))
					}
				}
			} else {
				if len(args) == 0 {
					return errors.New("a media root is required for a new job")
				}
				doc, err = store.Create(workspace.RunConfig{
					JobID:                uuid.NewString(),
					Root:                 args[0],
					Recursive:            recursive,
					Types:                types,
					Providers:            registry.Names(),
					PromptStyle:          cfg.Prompt.Style,
					PromptText:           cfg.Prompt.Text,
					Workers:              workers,
					FrameIntervalSeconds: cfg.Conversion.FrameIntervalSeconds,
					MaxFrames:            cfg.Conversion.MaxFrames,
				})
				if err != nil {
					return err
				}
				created = true
			}

			scanner, err := discovery.NewScanner(doc.Config.Root, discovery.Options{
				Recursive: doc.Config.Recursive,
				Types:     doc.Config.Types,
			}, logger)
			if err != nil {
				return err
			}

			enricher, closeEnrich, err := buildEnricher(cfg, logger)
			if err != nil {
				return err
			}
			defer closeEnrich()

			workflow := cfg.Workflow
			if doc.Config.Workers > 0 {
				workflow.Workers = doc.Config.Workers
			}
			prompt := cfg.Prompt
			if doc.Config.PromptStyle != "" {
				prompt.Style = doc.Config.PromptStyle
				prompt.Text = doc.Config.PromptText
			}
			conversion := cfg.Conversion
			if doc.Config.FrameIntervalSeconds > 0 {
				conversion.FrameIntervalSeconds = doc.Config.FrameIntervalSeconds
			}
			if doc.Config.MaxFrames > 0 {
				conversion.MaxFrames = doc.Config.MaxFrames
			}

			eng := engine.New(workflow, prompt, store,
				scanner,
				convert.NewConverter(conversion, cfg.Paths.DerivedDir, logger),
				enricher,
				registry, logger,
				engine.WithProviderOptions(providerOptions))

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			runCtx = services.WithRequestID(runCtx, doc.Config.JobID)

			verb := "resuming"
			if created {
				verb = "starting"
			}
			logger.Info(verb+" description job",
				logging.String("job_id", doc.Config.JobID),
				logging.String("root", doc.Config.Root),
				logging.String("document", docPath),
				logging.String("providers", strings.Join(registry.Names(), ",")))

			if err := eng.Run(runCtx, engine.RunOptions{RetryFailed: retryFailedFlag}); err != nil {
				return err
			}

			summary := report.Summarize(store.Document())
			fmt.Fprintln(cmd.OutOrStdout(), renderSummary(summary))
			if runCtx.Err() != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "run interrupted; resume with the same command")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&workspaceFlag, "workspace", "", "Workspace document path (default: workspace_dir/lumen.json)")
	cmd.Flags().BoolVar(&recursiveFlag, "recursive", false, "Scan subdirectories")
	cmd.Flags().IntVar(&workersFlag, "workers", 0, "Concurrent describe workers (default from config)")
	cmd.Flags().StringSliceVar(&providersFlag, "providers", nil, "Providers to use (default: all enabled)")
	cmd.Flags().StringSliceVar(&typesFlag, "types", nil, "Media types to include: image, heic, video")
	cmd.Flags().BoolVar(&retryFailedFlag, "retry-failed", false, "Re-enqueue failed items before dispatch")

	return cmd
}

// buildEnricher wires the geocode cache and Nominatim client when geocoding
// is enabled. The returned closer releases the cache database.
func buildEnricher(cfg *config.Config, logger *slog.Logger) (*enrich.Enricher, func(), error) {
	noop := func() {}
	if !cfg.Geocode.Enabled {
		return enrich.NewEnricher(nil, nil, logger), noop, nil
	}
	cache, err := enrich.OpenGeoCache(cfg.Paths.GeocodeCache, cfg.Geocode.GridMeters)
	if err != nil {
		return nil, noop, err
	}
	client, err := enrich.NewNominatimClient(cfg.Geocode.BaseURL, cfg.Geocode.UserAgent)
	if err != nil {
		cache.Close()
		return nil, noop, err
	}
	return enrich.NewEnricher(cache, client, logger), func() { cache.Close() }, nil
}
