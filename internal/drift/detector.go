package drift

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/metasync/internal/compare"
	"github.com/roach88/metasync/internal/model"
)

// Store is the slice of Pending Export persistence the detector needs.
type Store interface {
	CreatePendingExport(ctx context.Context, pe *model.PendingExport) error
	GetPendingExportByTargetObjectID(ctx context.Context, csoID uuid.UUID) (*model.PendingExport, error)
	UpdatePendingExport(ctx context.Context, pe *model.PendingExport) error
}

// DriftedAttribute is one enforced mapping whose target value disagrees with the metaverse.
type DriftedAttribute struct {
	SyncRuleID                 int
	AttributeFlowID            int
	MetaverseAttributeID       int
	ConnectedSystemAttributeID int
	DataType                   model.DataType
	Expected                   model.Value // nil when the metaverse has no value
	Actual                     model.Value // nil when the object has no value
}

// Input is everything detection needs for one imported object.
type Input struct {
	CSO           *model.ConnectedSystemObject
	MVO           *model.MetaverseObject // nil if the object is not joined
	ExportRules   []model.SyncRule
	Contributions ImportContributions
}

// Result describes what one Evaluate call found and staged.
type Result struct {
	Drift []DriftedAttribute

	// PendingExport is the export that received corrective changes, or nil
	// if nothing was staged.
	PendingExport *model.PendingExport
	Created       bool // PendingExport was newly created rather than folded into
	Staged        int  // changes appended or reset to Pending
}

// HasDrift reports whether any enforced mapping disagreed.
func (r Result) HasDrift() bool {
	return len(r.Drift) > 0
}

// Detector finds drift and stages corrective exports.
// A Detector holds no per-object state and is safe for concurrent use
// provided the Store is.
type Detector struct {
	store  Store
	lookup model.AttributeLookup
	ids    model.IDGenerator
	clock  model.Clock
	logger *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) {
		d.logger = l
	}
}

// WithIDGenerator sets the id source for new Pending Exports and changes.
func WithIDGenerator(g model.IDGenerator) Option {
	return func(d *Detector) {
		d.ids = g
	}
}

// WithClock sets the clock used for Pending Export creation times.
func WithClock(c model.Clock) Option {
	return func(d *Detector) {
		d.clock = c
	}
}

// NewDetector creates a Detector writing to s and resolving attributes via lookup.
func NewDetector(s Store, lookup model.AttributeLookup, opts ...Option) *Detector {
	d := &Detector{
		store:  s,
		lookup: lookup,
		ids:    model.UUIDv7Generator{},
		clock:  model.SystemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Evaluate detects drift on in.CSO and, if any is found, stages corrective
// changes. Store errors are returned unmodified in meaning; detection itself
// never fails.
func (d *Detector) Evaluate(ctx context.Context, in Input) (Result, error) {
	drifted := d.Detect(in)
	if len(drifted) == 0 {
		return Result{}, nil
	}

	d.logger.Info("drift detected",
		"cso_id", in.CSO.ID,
		"mvo_id", in.MVO.ID,
		"attributes", len(drifted),
	)

	res, err := d.stage(ctx, in.CSO, in.MVO, drifted)
	if err != nil {
		return Result{Drift: drifted}, err
	}
	res.Drift = drifted
	return res, nil
}

// Detect returns every enforced mapping whose target value on in.CSO differs
// from the metaverse value it is sourced from. It does not touch the store.
func (d *Detector) Detect(in Input) []DriftedAttribute {
	if in.CSO == nil || in.MVO == nil {
		return nil
	}

	rules := enforcedRules(in.ExportRules, in.CSO, in.MVO)
	if len(rules) == 0 {
		return nil
	}

	var drifted []DriftedAttribute
	for _, rule := range rules {
		for _, flow := range rule.AttributeFlows {
			drifted = append(drifted, d.checkFlow(rule, flow, in)...)
		}
	}
	return drifted
}

// enforcedRules keeps enabled export rules with EnforceState that target this
// object's system, object type, and joined metaverse type.
func enforcedRules(rules []model.SyncRule, cso *model.ConnectedSystemObject, mvo *model.MetaverseObject) []model.SyncRule {
	var out []model.SyncRule
	for _, r := range rules {
		if !r.Enabled || !r.EnforceState || r.Direction != model.DirectionExport {
			continue
		}
		if r.ConnectedSystemID != cso.ConnectedSystemID ||
			r.ConnectedSystemObjectTypeID != cso.TypeID ||
			r.MetaverseObjectTypeID != mvo.TypeID {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (d *Detector) checkFlow(rule model.SyncRule, flow model.AttributeFlow, in Input) []DriftedAttribute {
	target, ok := d.lookup.ConnectedSystemAttribute(flow.TargetConnectedSystemAttributeID)
	if flow.TargetConnectedSystemAttributeID == 0 || !ok {
		d.logger.Warn("export mapping has no usable target attribute; skipping",
			"sync_rule_id", rule.ID,
			"attribute_flow_id", flow.ID,
			"attribute_id", flow.TargetConnectedSystemAttributeID,
		)
		return nil
	}

	var out []DriftedAttribute
	for _, src := range flow.Sources {
		if src.IsExpression() {
			d.logger.Debug("expression source not checked for drift",
				"sync_rule_id", rule.ID,
				"attribute_flow_id", flow.ID,
			)
			continue
		}
		if src.MetaverseAttributeID == 0 {
			continue
		}
		if in.Contributions.Contributes(in.CSO.ConnectedSystemID, src.MetaverseAttributeID) {
			continue
		}

		expected, ok := model.Coerce(target.Type, in.MVO.FirstValue(src.MetaverseAttributeID))
		if !ok {
			d.logger.Warn("metaverse value not representable as target type; skipping",
				"sync_rule_id", rule.ID,
				"attribute_id", target.ID,
				"target_type", target.Type,
			)
			continue
		}
		actuals := coerceAll(target.Type, in.CSO.Values(target.ID))
		if matches(target.Type, actuals, expected) {
			continue
		}
		var actual model.Value
		if len(actuals) > 0 {
			actual = actuals[0]
		}
		out = append(out, DriftedAttribute{
			SyncRuleID:                 rule.ID,
			AttributeFlowID:            flow.ID,
			MetaverseAttributeID:       src.MetaverseAttributeID,
			ConnectedSystemAttributeID: target.ID,
			DataType:                   target.Type,
			Expected:                   expected,
			Actual:                     actual,
		})
	}
	return out
}

// coerceAll projects each value onto t, keeping the raw value where it does
// not fit so it still compares unequal.
func coerceAll(t model.DataType, raw []model.Value) []model.Value {
	out := make([]model.Value, 0, len(raw))
	for _, v := range raw {
		c, ok := model.Coerce(t, v)
		if !ok {
			c = v
		}
		out = append(out, c)
	}
	return out
}

// matches uses the same set semantics as export confirmation: a non-nil
// expected value is in sync when any actual value equals it, and a nil
// expected value is in sync only when there are no values.
func matches(t model.DataType, actuals []model.Value, expected model.Value) bool {
	if expected == nil {
		return len(actuals) == 0
	}
	return compare.Contains(t, actuals, expected)
}
