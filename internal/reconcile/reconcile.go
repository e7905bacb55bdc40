package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/metasync/internal/compare"
	"github.com/roach88/metasync/internal/model"
)

// DefaultMaxRetries is the attempt count at which an unconfirmed change fails.
const DefaultMaxRetries = 5

// Store is the slice of Pending Export persistence the reconciler needs.
type Store interface {
	GetPendingExportByTargetObjectID(ctx context.Context, csoID uuid.UUID) (*model.PendingExport, error)
	UpdatePendingExport(ctx context.Context, pe *model.PendingExport) error
	DeletePendingExport(ctx context.Context, pe *model.PendingExport) error
}

// Outcome is what happened to one attribute change in a pass.
type Outcome int

const (
	OutcomeConfirmed Outcome = iota + 1
	OutcomeRetry
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeRetry:
		return "retry"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ChangeResult records the outcome for one attribute change.
type ChangeResult struct {
	ChangeID    uuid.UUID
	AttributeID int
	Outcome     Outcome
	Expected    model.Value
	Imported    string // FormatValues of what the import held
}

// Result summarises one reconciliation pass for one object.
type Result struct {
	// PendingExportID is zero if the object had no Pending Export.
	PendingExportID uuid.UUID

	// Reconciled is false when there was nothing to reconcile: no Pending
	// Export, or one whose aggregate status is not Exported.
	Reconciled bool

	Changes []ChangeResult

	// TransitionedToUpdate is set when a Create export became an Update
	// because its secondary external identifier was confirmed.
	TransitionedToUpdate bool

	// Deleted is set when every change was confirmed and the export removed.
	Deleted bool

	// Status is the aggregate status after the pass (unset if Deleted).
	Status model.PendingExportStatus
}

// Count returns how many changes had outcome o.
func (r Result) Count(o Outcome) int {
	n := 0
	for _, c := range r.Changes {
		if c.Outcome == o {
			n++
		}
	}
	return n
}

// Reconciler processes imported objects against their Pending Export.
// It holds no per-object state and is safe for concurrent use across
// different objects provided the Store is. Concurrent passes over the same
// object must be serialised by the caller.
type Reconciler struct {
	store      Store
	lookup     model.AttributeLookup
	maxRetries int
	logger     *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithMaxRetries sets the retry limit.
//
// Default: 5 (DefaultMaxRetries). Values below 1 are ignored.
func WithMaxRetries(n int) Option {
	return func(r *Reconciler) {
		if n >= 1 {
			r.maxRetries = n
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = l
	}
}

// New creates a Reconciler over s, resolving attribute types via lookup.
func New(s Store, lookup model.AttributeLookup, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:      s,
		lookup:     lookup,
		maxRetries: DefaultMaxRetries,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxRetries returns the configured retry limit.
func (r *Reconciler) MaxRetries() int {
	return r.maxRetries
}

// Reconcile checks cso, as just imported, against its Pending Export.
//
// Store errors are returned as-is (wrapped); the caller must re-read current
// state before retrying, since a failed pass may have been partially applied
// by the connected system but not recorded.
func (r *Reconciler) Reconcile(ctx context.Context, cso *model.ConnectedSystemObject) (Result, error) {
	pe, err := r.store.GetPendingExportByTargetObjectID(ctx, cso.ID)
	if err != nil {
		return Result{}, fmt.Errorf("reconcile cso %s: %w", cso.ID, err)
	}
	if pe == nil {
		return Result{}, nil
	}

	res := Result{PendingExportID: pe.ID, Status: pe.Status}
	if pe.Status != model.PendingExportExported {
		r.logger.Debug("pending export not awaiting confirmation; skipping",
			"cso_id", cso.ID,
			"pending_export_id", pe.ID,
			"status", pe.Status,
		)
		return res, nil
	}
	res.Reconciled = true

	confirmed := make(map[uuid.UUID]struct{})
	confirmedAttrs := make(map[int]struct{})
	for i := range pe.AttributeChanges {
		c := &pe.AttributeChanges[i]
		if c.Status != model.AttributeChangeExportedPendingConfirmation {
			continue
		}

		values := cso.Values(c.AttributeID)
		cr := ChangeResult{
			ChangeID:    c.ID,
			AttributeID: c.AttributeID,
			Expected:    c.Value,
			Imported:    model.FormatValues(values),
		}

		if r.isConfirmed(c, values) {
			cr.Outcome = OutcomeConfirmed
			confirmed[c.ID] = struct{}{}
			confirmedAttrs[c.AttributeID] = struct{}{}
			r.logger.Debug("attribute change confirmed",
				"pending_export_id", pe.ID,
				"attribute_id", c.AttributeID,
			)
			res.Changes = append(res.Changes, cr)
			continue
		}

		c.LastImportedValue = cr.Imported
		if c.ExportAttemptCount >= r.maxRetries {
			c.Status = model.AttributeChangeFailed
			cr.Outcome = OutcomeFailed
			r.logger.Warn("attribute change failed after retry limit",
				"pending_export_id", pe.ID,
				"cso_id", cso.ID,
				"attribute_id", c.AttributeID,
				"attempts", c.ExportAttemptCount,
				"expected", formatValue(c.Value),
				"imported", cr.Imported,
			)
		} else {
			c.Status = model.AttributeChangeExportedNotConfirmed
			cr.Outcome = OutcomeRetry
			r.logger.Debug("attribute change not confirmed; will retry",
				"pending_export_id", pe.ID,
				"attribute_id", c.AttributeID,
				"attempts", c.ExportAttemptCount,
				"expected", formatValue(c.Value),
				"imported", cr.Imported,
			)
		}
		res.Changes = append(res.Changes, cr)
	}

	pe.RemoveChanges(confirmed)
	res.TransitionedToUpdate = r.transitionCreateToUpdate(pe, confirmedAttrs)

	if len(pe.AttributeChanges) == 0 {
		if err := r.store.DeletePendingExport(ctx, pe); err != nil {
			return res, fmt.Errorf("reconcile cso %s: %w", cso.ID, err)
		}
		res.Deleted = true
		res.Status = 0
		r.logger.Info("pending export fully confirmed; deleted",
			"cso_id", cso.ID,
			"pending_export_id", pe.ID,
			"confirmed", len(confirmed),
		)
		return res, nil
	}

	res.Status = pe.RecomputeStatus()
	if err := r.store.UpdatePendingExport(ctx, pe); err != nil {
		return res, fmt.Errorf("reconcile cso %s: %w", cso.ID, err)
	}

	r.logger.Info("pending export reconciled",
		"cso_id", cso.ID,
		"pending_export_id", pe.ID,
		"confirmed", res.Count(OutcomeConfirmed),
		"retry", res.Count(OutcomeRetry),
		"failed", res.Count(OutcomeFailed),
		"status", res.Status,
	)
	return res, nil
}

// isConfirmed applies the per-change-type confirmation rule.
func (r *Reconciler) isConfirmed(c *model.AttributeChange, values []model.Value) bool {
	switch c.ChangeType {
	case model.AttributeChangeAdd, model.AttributeChangeUpdate:
		if c.Value == nil {
			return len(values) == 0
		}
		return compare.Contains(r.dataType(c), values, c.Value)
	case model.AttributeChangeRemove:
		if c.Value == nil {
			return len(values) == 0
		}
		return !compare.Contains(r.dataType(c), values, c.Value)
	case model.AttributeChangeRemoveAll:
		return len(values) == 0
	default:
		r.logger.Warn("unknown attribute change type; treating as unconfirmed",
			"pending_export_id", c.PendingExportID,
			"attribute_id", c.AttributeID,
			"change_type", int(c.ChangeType),
		)
		return false
	}
}

// dataType is the declared type of the change's attribute, falling back to
// the intended value's own type when the attribute is unknown.
func (r *Reconciler) dataType(c *model.AttributeChange) model.DataType {
	if attr, ok := r.lookup.ConnectedSystemAttribute(c.AttributeID); ok {
		return attr.Type
	}
	r.logger.Warn("attribute change references unknown attribute",
		"pending_export_id", c.PendingExportID,
		"attribute_id", c.AttributeID,
	)
	return c.Value.DataType()
}

func formatValue(v model.Value) string {
	if v == nil {
		return "(none)"
	}
	return v.String()
}
