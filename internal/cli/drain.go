package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/weddingtools/rsvpd/internal/export"
	"github.com/weddingtools/rsvpd/internal/invites"
	"github.com/weddingtools/rsvpd/internal/lock"
	"github.com/weddingtools/rsvpd/internal/store"
)

// DrainOptions holds flags for the drain command.
type DrainOptions struct {
	*RootOptions
	Once bool
}

// NewDrainCommand creates the drain command.
func NewDrainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DrainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Drain the export outbox",
		Long: `Consume pending export work items and write export rows.

Runs on the configured interval until interrupted, or a single pass
with --once.

Example:
  rsvpd drain --config rsvpd.yaml
  rsvpd drain --config rsvpd.yaml --once`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrain(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "run a single drain pass and exit")

	return cmd
}

func runDrain(ctx context.Context, opts *DrainOptions) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	log := newLogger(opts.RootOptions)

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	manager := lock.NewManager(st, lock.SystemClock{}, log)
	source := invites.New(cfg.InvitesPath, cfg.InvitesCacheTTL())
	drainer := export.NewDrainer(st, st, manager, source, lock.SystemClock{}, export.Options{
		MaxItems:    cfg.Export.MaxItems,
		MaxAttempts: cfg.Export.MaxAttempts,
		Interval:    cfg.DrainInterval(),
	}, log)

	if opts.Once {
		if err := drainer.DrainOnce(ctx); err != nil {
			return WrapExitError(ExitFailure, "drain pass failed", err)
		}
		log.Info().Msg("drain pass complete")
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Dur("interval", cfg.DrainInterval()).Msg("drain loop started")
	if err := drainer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "drain loop failed", err)
	}
	log.Info().Msg("drain loop stopped")
	return nil
}
