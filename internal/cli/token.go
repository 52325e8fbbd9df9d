package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/weddingtools/rsvpd/internal/session"
)

// NewTokenCommand creates the token command group.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and verify session tokens",
	}
	cmd.AddCommand(newTokenIssueCommand(rootOpts))
	cmd.AddCommand(newTokenVerifyCommand(rootOpts))
	return cmd
}

func newTokenIssueCommand(rootOpts *RootOptions) *cobra.Command {
	var ttlMinutes int

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a signed session token",
		Long: `Issues a session token signed with the configured key. The token's
SHA-256 digest is the device identity used for claim tracking.

Example:
  rsvpd token issue --config rsvpd.yaml --ttl 30`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if cfg.SessionSigningKey == "" {
				return WrapExitError(ExitCommandError, "sessionSigningKey is not configured", nil)
			}

			ttl := cfg.SessionTTL()
			if ttlMinutes > 0 {
				ttl = time.Duration(ttlMinutes) * time.Minute
			}
			expiresAt := time.Now().UTC().Add(ttl)
			token := session.Issue(expiresAt, cfg.SessionSigningKey)

			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return formatter.Success(map[string]string{
				"token":     token,
				"deviceId":  session.DeviceID(token),
				"expiresAt": expiresAt.Format(time.RFC3339),
			})
		},
	}

	cmd.Flags().IntVar(&ttlMinutes, "ttl", 0, "token lifetime in minutes (default from config)")
	return cmd
}

func newTokenVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <token>",
		Short: "Verify a session token",
		Long: `Checks the token's signature and expiry against the configured key.
Exits 1 for an invalid or expired token; details are never disclosed
beyond valid/invalid.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if cfg.SessionSigningKey == "" {
				return WrapExitError(ExitCommandError, "sessionSigningKey is not configured", nil)
			}

			expiresAt, err := session.Validate(args[0], cfg.SessionSigningKey, time.Now().UTC())
			if err != nil {
				return WrapExitError(ExitFailure, "invalid token", nil)
			}

			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return formatter.Success(map[string]string{
				"deviceId":  session.DeviceID(args[0]),
				"expiresAt": expiresAt.Format(time.RFC3339),
			})
		},
	}
	return cmd
}
