package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/weddingtools/rsvpd/internal/config"
	"github.com/weddingtools/rsvpd/internal/domain"
	"github.com/weddingtools/rsvpd/internal/invites"
	"github.com/weddingtools/rsvpd/internal/lock"
	"github.com/weddingtools/rsvpd/internal/session"
	"github.com/weddingtools/rsvpd/internal/store"
	"github.com/weddingtools/rsvpd/internal/validate"
)

// submissionFile is the JSON wire form of a group submission.
type submissionFile struct {
	Events map[string]eventSelectionDoc `json:"events"`
	People map[string]personReplyDoc    `json:"people"`
}

type eventSelectionDoc struct {
	Attendance       *string  `json:"attendance"`
	SingleAttendeeID *string  `json:"singleAttendeeId"`
	AttendeeIDs      []string `json:"attendeeIds"`
}

type personReplyDoc struct {
	Attending     string `json:"attending"`
	HasAllergies  *bool  `json:"hasAllergies"`
	AllergiesText string `json:"allergiesText"`
}

// NewClaimCommand creates the claim command.
func NewClaimCommand(rootOpts *RootOptions) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "claim <group-id>",
		Short: "Claim the exclusive editing lock on a group",
		Long: `Acquires or extends the editing lock for the device identified by the
session token. Reports the group's state when the lock is held elsewhere
or the group has already confirmed.

Example:
  rsvpd claim g-river --token "$TOKEN" --config rsvpd.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClaim(cmd.Context(), rootOpts, args[0], token, cmd)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "session token (required)")
	cmd.MarkFlagRequired("token")
	return cmd
}

func runClaim(ctx context.Context, rootOpts *RootOptions, groupID, token string, cmd *cobra.Command) error {
	cfg, err := loadConfig(rootOpts)
	if err != nil {
		return err
	}
	log := newLogger(rootOpts)

	deviceID, err := authenticate(cfg, token)
	if err != nil {
		return err
	}
	if err := requireInvited(cfg, groupID); err != nil {
		return err
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	manager := lock.NewManager(st, lock.SystemClock{}, log)
	rec, err := manager.Claim(ctx, groupID, deviceID, cfg.LockDuration())
	if err != nil {
		return WrapExitError(ExitFailure, "claim failed", err)
	}

	out := map[string]any{
		"groupId": rec.GroupID,
		"status":  string(rec.Status),
		"held":    rec.Status == domain.StatusLocked && rec.LockHolderID == deviceID,
	}
	if rec.Status == domain.StatusLocked {
		out["lockExpiresAt"] = rec.LockExpiresAt.Format(time.RFC3339)
	}

	formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
	return formatter.Success(out)
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	var token, file string

	cmd := &cobra.Command{
		Use:   "submit <group-id>",
		Short: "Validate and submit a group's final response",
		Long: `Reads a submission JSON file, validates it exhaustively against the
group's invite definition, and confirms the group. The caller must hold
the lock (see claim). Validation failures list every violated rule.

Example:
  rsvpd submit g-river --token "$TOKEN" --file response.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd.Context(), rootOpts, args[0], token, file, cmd)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "session token (required)")
	cmd.Flags().StringVar(&file, "file", "", "submission JSON file (required)")
	cmd.MarkFlagRequired("token")
	cmd.MarkFlagRequired("file")
	return cmd
}

func runSubmit(ctx context.Context, rootOpts *RootOptions, groupID, token, file string, cmd *cobra.Command) error {
	cfg, err := loadConfig(rootOpts)
	if err != nil {
		return err
	}
	log := newLogger(rootOpts)

	deviceID, err := authenticate(cfg, token)
	if err != nil {
		return err
	}

	source := invites.New(cfg.InvitesPath, cfg.InvitesCacheTTL())
	group, ok, err := source.GetGroup(groupID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load invites", err)
	}
	if !ok {
		return WrapExitError(ExitCommandError, fmt.Sprintf("unknown group %q", groupID), nil)
	}

	sub, err := readSubmission(file)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read submission", err)
	}

	if errs := validate.Submission(group, sub, cfg.AllergiesTextMaxLength); len(errs) > 0 {
		return reportValidationErrors(rootOpts, cmd, errs)
	}

	resp, err := domain.BuildEventResponse(group, sub)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to build response", err)
	}
	people := buildPersonRecords(group, sub)

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	manager := lock.NewManager(st, lock.SystemClock{}, log)
	if err := manager.Submit(ctx, groupID, deviceID, resp, people); err != nil {
		return WrapExitError(ExitFailure, "submit failed", err)
	}

	clock := lock.SystemClock{}
	if err := st.EnqueueUpsert(ctx, groupID, clock.Now()); err != nil {
		// The submit is authoritative; a missed enqueue only delays export.
		log.Warn().Err(err).Str("group_id", groupID).Msg("export enqueue failed")
	}

	formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
	return formatter.Success(map[string]string{"groupId": groupID, "status": string(domain.StatusConfirmed)})
}

// authenticate validates the session token and derives the device identity.
func authenticate(cfg config.Config, token string) (string, error) {
	if cfg.SessionSigningKey == "" {
		return "", WrapExitError(ExitCommandError, "sessionSigningKey is not configured", nil)
	}
	if _, err := session.Validate(token, cfg.SessionSigningKey, time.Now().UTC()); err != nil {
		return "", WrapExitError(ExitFailure, "invalid token", nil)
	}
	return session.DeviceID(token), nil
}

// requireInvited rejects group ids that are not on the invite list.
func requireInvited(cfg config.Config, groupID string) error {
	source := invites.New(cfg.InvitesPath, cfg.InvitesCacheTTL())
	if _, ok, err := source.GetGroup(groupID); err != nil {
		return WrapExitError(ExitCommandError, "failed to load invites", err)
	} else if !ok {
		return WrapExitError(ExitCommandError, fmt.Sprintf("unknown group %q", groupID), nil)
	}
	return nil
}

func readSubmission(path string) (domain.Submission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Submission{}, err
	}
	var doc submissionFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.Submission{}, err
	}

	sub := domain.Submission{
		Events: make(map[domain.EventKind]domain.EventSelection, len(doc.Events)),
		People: make(map[string]domain.PersonReply, len(doc.People)),
	}
	for kind, sel := range doc.Events {
		var variant *domain.Variant
		if sel.Attendance != nil {
			v := domain.Variant(*sel.Attendance)
			variant = &v
		}
		sub.Events[domain.EventKind(kind)] = domain.EventSelection{
			Variant:          variant,
			SingleAttendeeID: sel.SingleAttendeeID,
			AttendeeIDs:      sel.AttendeeIDs,
		}
	}
	for id, p := range doc.People {
		sub.People[id] = domain.PersonReply{
			Attending:     domain.Attending(p.Attending),
			HasAllergies:  p.HasAllergies,
			AllergiesText: p.AllergiesText,
		}
	}
	return sub, nil
}

// buildPersonRecords converts a validated submission into person records,
// carrying names from the invite definition. GroupID and UpdatedAt are
// stamped by the lock manager.
func buildPersonRecords(group domain.GroupDefinition, sub domain.Submission) []domain.PersonRecord {
	records := make([]domain.PersonRecord, 0, len(group.Members))
	for _, m := range group.Members {
		reply := sub.People[m.PersonID]
		rec := domain.PersonRecord{
			PersonID:  m.PersonID,
			FullName:  m.FullName,
			Attending: reply.Attending,
		}
		if reply.HasAllergies != nil {
			rec.HasAllergies = *reply.HasAllergies
		}
		if rec.HasAllergies {
			rec.AllergiesText = reply.AllergiesText
		}
		records = append(records, rec)
	}
	return records
}

func reportValidationErrors(rootOpts *RootOptions, cmd *cobra.Command, errs []validate.Error) error {
	if rootOpts.Format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		if err := enc.Encode(Response{Status: "invalid", Data: errs}); err != nil {
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
	} else {
		for _, e := range errs {
			fmt.Fprintln(cmd.OutOrStdout(), e.Error())
		}
	}
	return WrapExitError(ExitFailure, fmt.Sprintf("submission invalid: %d rule(s) violated", len(errs)), nil)
}
