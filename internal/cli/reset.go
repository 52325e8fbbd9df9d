package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/weddingtools/rsvpd/internal/lock"
	"github.com/weddingtools/rsvpd/internal/store"
)

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset <group-id>",
		Short: "Reset a confirmed group back to open",
		Long: `Administrative override: deletes the group's person responses, reopens
the group record, and enqueues removal of its export rows. Always wins
over any in-flight lock.

Example:
  rsvpd reset g-river --config rsvpd.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(cmd.Context(), rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runReset(ctx context.Context, rootOpts *RootOptions, groupID string, cmd *cobra.Command) error {
	cfg, err := loadConfig(rootOpts)
	if err != nil {
		return err
	}
	log := newLogger(rootOpts)

	// A reset for a group that is not on the invite list is almost always a
	// typo; refuse rather than create orphan state.
	if err := requireInvited(cfg, groupID); err != nil {
		return err
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	manager := lock.NewManager(st, lock.SystemClock{}, log)
	if err := manager.Reset(ctx, groupID); err != nil {
		return WrapExitError(ExitFailure, "reset failed", err)
	}
	clock := lock.SystemClock{}
	if err := st.EnqueueDelete(ctx, groupID, clock.Now()); err != nil {
		return WrapExitError(ExitFailure, "reset succeeded but export delete could not be enqueued", err)
	}

	formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
	return formatter.Success(map[string]string{"groupId": groupID, "status": "open"})
}
