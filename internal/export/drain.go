// Package export drains the export outbox into the export sink.
//
// The drain loop is the eventually-consistent half of the system: Submit is
// authoritative, export is best-effort and retried. Each pending item is
// processed in isolation so one bad item never blocks the batch, and items
// that keep failing are skipped (not deleted) once they exceed the attempt
// cap to avoid poison-pill amplification.
package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/weddingtools/rsvpd/internal/domain"
	"github.com/weddingtools/rsvpd/internal/projection"
	"github.com/weddingtools/rsvpd/internal/store"
)

// Sink receives derived export rows. Implementations must be idempotent:
// upserting the same rows twice and deleting an absent group are both safe.
type Sink interface {
	UpsertExportRows(ctx context.Context, rows []projection.Row) error
	DeleteExportRows(ctx context.Context, groupID string) error
}

// Outbox is the work queue surface the drainer consumes.
type Outbox interface {
	PendingWork(ctx context.Context, maxItems int) ([]store.WorkItem, error)
	MarkSucceeded(ctx context.Context, groupID, versionToken string, now time.Time) error
	MarkFailed(ctx context.Context, groupID, versionToken, errText string, now time.Time) error
}

// Groups is the read-only group state surface (the lock manager).
type Groups interface {
	GetOrCreate(ctx context.Context, groupID string) (domain.GroupRecord, error)
	Responses(ctx context.Context, groupID string) (map[string]domain.PersonRecord, error)
}

// Invites resolves group definitions.
type Invites interface {
	GetGroup(groupID string) (domain.GroupDefinition, bool, error)
}

// Clock abstracts wall time for mark timestamps.
type Clock interface {
	Now() time.Time
}

// Options tune one drainer.
type Options struct {
	// MaxItems bounds one drain pass.
	MaxItems int
	// MaxAttempts is the poison-pill cap: items at or over it are skipped.
	MaxAttempts int
	// Interval between passes in Run.
	Interval time.Duration
}

// Drainer consumes pending outbox items and writes export rows.
type Drainer struct {
	outbox  Outbox
	sink    Sink
	groups  Groups
	invites Invites
	clock   Clock
	opts    Options
	log     zerolog.Logger
}

// NewDrainer wires a drainer. Zero option fields get conservative defaults.
func NewDrainer(outbox Outbox, sink Sink, groups Groups, invites Invites, clock Clock, opts Options, log zerolog.Logger) *Drainer {
	if opts.MaxItems <= 0 {
		opts.MaxItems = 25
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 50
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	return &Drainer{outbox: outbox, sink: sink, groups: groups, invites: invites, clock: clock, opts: opts, log: log}
}

// Run drains on a ticker until ctx is cancelled.
func (d *Drainer) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.opts.Interval)
	defer ticker.Stop()

	for {
		if err := d.DrainOnce(ctx); err != nil {
			d.log.Error().Err(err).Msg("drain pass failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// DrainOnce processes up to MaxItems pending items. Item-level failures are
// recorded on the item and do not fail the pass; only being unable to read
// the queue at all returns an error.
func (d *Drainer) DrainOnce(ctx context.Context) error {
	pending, err := d.outbox.PendingWork(ctx, d.opts.MaxItems)
	if err != nil {
		return fmt.Errorf("poll outbox: %w", err)
	}

	for _, item := range pending {
		if item.AttemptCount >= d.opts.MaxAttempts {
			d.log.Warn().Str("group_id", item.GroupID).Int("attempts", item.AttemptCount).
				Msg("export skipped: attempt cap reached")
			continue
		}

		if err := d.processItem(ctx, item); err != nil {
			// Error text, not payload: export rows may carry PII.
			d.log.Warn().Str("group_id", item.GroupID).Err(err).Msg("export failed")
			if markErr := d.outbox.MarkFailed(ctx, item.GroupID, item.VersionToken, err.Error(), d.clock.Now()); markErr != nil {
				d.logMarkError(item.GroupID, markErr)
			}
			continue
		}

		if markErr := d.outbox.MarkSucceeded(ctx, item.GroupID, item.VersionToken, d.clock.Now()); markErr != nil {
			d.logMarkError(item.GroupID, markErr)
		}
	}
	return nil
}

func (d *Drainer) processItem(ctx context.Context, item store.WorkItem) error {
	if item.Operation == store.OpDelete {
		return d.sink.DeleteExportRows(ctx, item.GroupID)
	}

	group, ok, err := d.invites.GetGroup(item.GroupID)
	if err != nil {
		return fmt.Errorf("resolve group: %w", err)
	}
	if !ok {
		return errors.New("unknown group id")
	}

	rec, err := d.groups.GetOrCreate(ctx, item.GroupID)
	if err != nil {
		return fmt.Errorf("read group state: %w", err)
	}
	// "Not confirmed" looks terminal but is retryable: a later confirmation
	// re-enqueues the item anyway.
	if rec.Status != domain.StatusConfirmed || rec.EventResponse == nil {
		return errors.New("group not confirmed")
	}

	stored, err := d.groups.Responses(ctx, item.GroupID)
	if err != nil {
		return fmt.Errorf("read person responses: %w", err)
	}

	// Re-derive the projection fresh from persisted state; nothing derived
	// is ever read back from the sink.
	people := make(map[string]domain.PersonReply, len(group.Members))
	for _, m := range group.Members {
		pr, ok := stored[m.PersonID]
		if !ok || pr.Attending != domain.AttendingYes {
			people[m.PersonID] = domain.PersonReply{Attending: domain.AttendingNo}
			continue
		}
		has := pr.HasAllergies
		people[m.PersonID] = domain.PersonReply{
			Attending:     domain.AttendingYes,
			HasAllergies:  &has,
			AllergiesText: pr.AllergiesText,
		}
	}

	rows := projection.Rows(group, rec.EventResponse, people)
	if err := d.sink.UpsertExportRows(ctx, rows); err != nil {
		return fmt.Errorf("write export rows: %w", err)
	}
	return nil
}

func (d *Drainer) logMarkError(groupID string, err error) {
	if store.IsVersionConflict(err) {
		// A fresh enqueue superseded this item mid-drain; the newer item
		// will be picked up next pass.
		d.log.Debug().Str("group_id", groupID).Msg("outbox item superseded during drain")
		return
	}
	d.log.Warn().Str("group_id", groupID).Err(err).Msg("outbox mark failed")
}
