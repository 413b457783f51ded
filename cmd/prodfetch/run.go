package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"prodfetch/internal/downloader"
	"prodfetch/pkg/auth"
	"prodfetch/pkg/batch"
	"prodfetch/pkg/checkpoint"
	"prodfetch/pkg/config"
	"prodfetch/pkg/items"
	"prodfetch/pkg/logger"
	"prodfetch/pkg/product"
	"prodfetch/pkg/ratelimit"
	"prodfetch/pkg/storage"
	"prodfetch/pkg/transport"
	"prodfetch/pkg/ui"
	"prodfetch/pkg/vcs"
)

// githubOutputEnv names the file that receives workflow outputs
const githubOutputEnv = "GITHUB_OUTPUT"

type runFlags struct {
	input      string
	checkpoint string
	output     string
	storage    string
	imageAuth  string
	itemDelay  time.Duration
	dryRun     bool
	gitSync    bool
}

func newRunCmd(root *rootFlags) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch images for every item not yet in the checkpoint",
		Example: `  # Local storage with defaults from .env
  prodfetch run

  # Upload to Google Drive and push the checkpoint every 30 minutes
  prodfetch run --storage drive --git-sync

  # Show what would be fetched
  prodfetch run --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, root, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.input, "input", "i", "", "input CSV with an \"Item Code\" column")
	cmd.Flags().StringVar(&flags.checkpoint, "checkpoint", "", "checkpoint CSV path")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output directory for local storage")
	cmd.Flags().StringVar(&flags.storage, "storage", "", "storage backend (local, drive)")
	cmd.Flags().StringVar(&flags.imageAuth, "image-auth", "", "credentials used for image downloads (primary, source)")
	cmd.Flags().DurationVar(&flags.itemDelay, "item-delay", 0, "pause between items")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "list pending items without fetching")
	cmd.Flags().BoolVar(&flags.gitSync, "git-sync", false, "commit and push the checkpoint periodically")

	return cmd
}

// flagOverrides collects only the flags the user set explicitly
func flagOverrides(cmd *cobra.Command, root *rootFlags, flags *runFlags) map[string]interface{} {
	overrides := make(map[string]interface{})
	set := func(name string, value interface{}) {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			overrides[name] = value
		}
	}

	set("input", flags.input)
	set("checkpoint", flags.checkpoint)
	set("output", flags.output)
	set("storage", flags.storage)
	set("image-auth", flags.imageAuth)
	set("item-delay", flags.itemDelay)
	set("dry-run", flags.dryRun)
	set("git-sync", flags.gitSync)
	set("log-level", root.logLevel)

	return overrides
}

func runBatch(cmd *cobra.Command, root *rootFlags, flags *runFlags) error {
	ctx := cmd.Context()

	cfg, err := config.Load(root.configFile, flagOverrides(cmd, root, flags))
	if err != nil {
		ui.PrintError(cmd.ErrOrStderr(), "Failed to load configuration", err)
		return err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("prodfetch starting")

	driver, err := buildDriver(ctx, cfg, log)
	if err != nil {
		ui.PrintError(cmd.ErrOrStderr(), "Failed to initialize", err)
		return err
	}

	summary, err := driver.Run(ctx)
	if err != nil && summary == nil {
		log.WithError(err).Error("Run aborted")
		ui.PrintError(cmd.ErrOrStderr(), "Run aborted", err)
		return err
	}

	if !cfg.Batch.DryRun {
		if werr := writeWorkDone(summary.WorkDone); werr != nil {
			log.WithError(werr).Warn("Failed to write workflow output")
		}
	}

	if cfg.Batch.DryRun {
		ui.PrintPending(cmd.OutOrStdout(), summary.PendingCodes)
	} else {
		ui.PrintSummary(cmd.OutOrStdout(), summary)
	}

	// Interruption is a normal way to stop; the checkpoint covers resumption
	if err != nil {
		log.WithError(err).Warn("Run interrupted")
	}
	return nil
}

// buildDriver constructs every collaborator from configuration
func buildDriver(ctx context.Context, cfg *config.Config, log logger.Logger) (*batch.Driver, error) {
	resolver := auth.NewResolver(auth.NewKeyringStore(), log)
	endpoints := buildEndpoints(cfg.API, resolver)

	client := transport.New(transport.Options{
		Timeout:          cfg.HTTP.Timeout,
		MaxRetries:       cfg.HTTP.MaxRetries,
		BackoffFactor:    cfg.HTTP.BackoffFactor,
		RetryStatusCodes: cfg.HTTP.RetryStatusCodes,
		UserAgent:        cfg.HTTP.UserAgent,
		Logger:           log,
	})

	fetcher := product.NewFetcher(client, product.Options{
		Attempts:     cfg.Fetch.Attempts,
		EmptyBackoff: cfg.Fetch.EmptyBackoff,
		Logger:       log,
	})

	store, err := buildStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	dl, err := downloader.New(downloader.Options{
		BaseURL: cfg.API.BaseImageURL,
		Client:  client,
		Store:   store,
		Logger:  log,
	})
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.NewFixedDelay(cfg.Batch.ItemDelay)
	log.WithField("item_delay", limiter.Delay()).Debug("Inter-item pacing configured")

	opts := batch.Options{
		Endpoints:    endpoints,
		ImageAuth:    cfg.API.ImageAuth,
		Fetcher:      fetcher,
		Downloader:   dl,
		Checkpoint:   checkpoint.NewStore(cfg.Batch.CheckpointFile, cfg.CheckpointColumn(), cfg.EmptyMarker(), log),
		Items:        items.Source{Path: cfg.Batch.InputFile},
		Limiter:      limiter,
		SyncInterval: cfg.Git.SyncInterval,
		DryRun:       cfg.Batch.DryRun,
		Logger:       log,
	}

	if cfg.Git.Enabled {
		syncer := vcs.NewGitSyncer(vcs.Options{
			RepoPath:    cfg.Git.RepoPath,
			Remote:      cfg.Git.Remote,
			Repository:  cfg.Git.Repository,
			Branch:      cfg.Git.Branch,
			Token:       cfg.Git.Token,
			AuthorName:  cfg.Git.AuthorName,
			AuthorEmail: cfg.Git.AuthorEmail,
			Logger:      log,
		})
		if syncer != nil {
			opts.Syncer = syncer
		}
	}

	return batch.NewDriver(opts)
}

// buildEndpoints resolves credentials for the configured endpoints in
// priority order. Endpoints without credentials stay in the list disabled.
func buildEndpoints(api config.APIConfig, resolver *auth.Resolver) []product.Endpoint {
	var endpoints []product.Endpoint
	for _, ep := range api.Endpoints() {
		endpoints = append(endpoints, product.Endpoint{
			Name:    ep.Name,
			URL:     ep.URL,
			Headers: resolver.Headers(ep),
		})
	}
	return endpoints
}

func buildStore(ctx context.Context, cfg *config.Config, log logger.Logger) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case config.StorageDrive:
		api, err := storage.NewGoogleDrive(ctx, []byte(cfg.Drive.CredentialsJSON))
		if err != nil {
			return nil, err
		}
		return storage.NewDriveStore(api, cfg.Drive.ParentFolderID, "", log), nil
	default:
		store, err := storage.NewLocalStore(cfg.Storage.OutputDirectory)
		if err != nil {
			return nil, err
		}
		log.WithField("root", store.Root()).Info("Saving images to local storage")
		return store, nil
	}
}

// writeWorkDone appends the work_done flag to the workflow output file
func writeWorkDone(workDone bool) error {
	path := os.Getenv(githubOutputEnv)
	if path == "" {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(f, "work_done=%t\n", workDone); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
