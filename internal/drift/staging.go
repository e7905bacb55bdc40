package drift

import (
	"context"
	"fmt"

	"github.com/roach88/metasync/internal/compare"
	"github.com/roach88/metasync/internal/model"
)

// changeSet is the corrective changes derived from one rule's drift.
type changeSet struct {
	ruleID  int
	changes []model.AttributeChange
}

// stage groups drift by rule and folds every group into the object's single
// open Pending Export, creating it on the first usable group.
func (d *Detector) stage(ctx context.Context, cso *model.ConnectedSystemObject, mvo *model.MetaverseObject, drifted []DriftedAttribute) (Result, error) {
	sets := d.groupByRule(drifted)
	if len(sets) == 0 {
		d.logger.Debug("drift has no usable expected values; nothing staged", "cso_id", cso.ID)
		return Result{}, nil
	}

	existing, err := d.store.GetPendingExportByTargetObjectID(ctx, cso.ID)
	if err != nil {
		return Result{}, fmt.Errorf("stage corrective export: %w", err)
	}

	if existing != nil {
		if existing.ChangeType == model.PendingExportDelete {
			d.logger.Info("pending export is a delete; corrective changes not staged",
				"cso_id", cso.ID,
				"pending_export_id", existing.ID,
			)
			return Result{}, nil
		}
		if existing.Status == model.PendingExportExecuting {
			d.logger.Info("pending export is executing; corrective changes deferred",
				"cso_id", cso.ID,
				"pending_export_id", existing.ID,
			)
			return Result{}, nil
		}

		staged := 0
		for _, set := range sets {
			staged += d.fold(existing, set)
		}
		if staged == 0 {
			return Result{}, nil
		}
		if existing.Status != model.PendingExportPending {
			existing.RecomputeStatus()
		}
		if err := d.store.UpdatePendingExport(ctx, existing); err != nil {
			return Result{}, fmt.Errorf("stage corrective export: %w", err)
		}
		d.logger.Info("corrective changes folded into pending export",
			"cso_id", cso.ID,
			"pending_export_id", existing.ID,
			"changes", staged,
		)
		return Result{PendingExport: existing, Staged: staged}, nil
	}

	pe := &model.PendingExport{
		ID:                      d.ids.NewID(),
		ConnectedSystemID:       cso.ConnectedSystemID,
		ConnectedSystemObjectID: cso.ID,
		ChangeType:              model.PendingExportUpdate,
		Status:                  model.PendingExportPending,
		CreatedAt:               d.clock.Now(),
	}
	mvoID := mvo.ID
	pe.SourceMetaverseObjectID = &mvoID

	staged := 0
	for _, set := range sets {
		staged += d.fold(pe, set)
	}
	if err := d.store.CreatePendingExport(ctx, pe); err != nil {
		return Result{}, fmt.Errorf("stage corrective export: %w", err)
	}
	d.logger.Info("corrective pending export created",
		"cso_id", cso.ID,
		"pending_export_id", pe.ID,
		"changes", staged,
	)
	return Result{PendingExport: pe, Created: true, Staged: staged}, nil
}

// groupByRule builds one change set per rule, in the order rules first
// appear in drifted. Drift without an expected value yields no change, and
// a rule whose drift yields no changes yields no set.
func (d *Detector) groupByRule(drifted []DriftedAttribute) []changeSet {
	var sets []changeSet
	index := make(map[int]int)
	for _, da := range drifted {
		if da.Expected == nil {
			continue
		}
		i, ok := index[da.SyncRuleID]
		if !ok {
			i = len(sets)
			index[da.SyncRuleID] = i
			sets = append(sets, changeSet{ruleID: da.SyncRuleID})
		}
		sets[i].changes = append(sets[i].changes, model.AttributeChange{
			ID:          d.ids.NewID(),
			AttributeID: da.ConnectedSystemAttributeID,
			ChangeType:  model.AttributeChangeUpdate,
			Value:       da.Expected,
			Status:      model.AttributeChangePending,
		})
	}
	return sets
}

// fold merges set into pe and returns how many changes were appended or reset.
func (d *Detector) fold(pe *model.PendingExport, set changeSet) int {
	staged := 0
	for _, c := range set.changes {
		cur := pe.ChangeForAttribute(c.AttributeID)
		if cur == nil {
			pe.AddChange(c)
			staged++
			continue
		}

		dt := model.DataTypeNotSet
		if attr, ok := d.lookup.ConnectedSystemAttribute(c.AttributeID); ok {
			dt = attr.Type
		}
		if compare.Equal(dt, c.Value, cur.Value) {
			continue
		}

		switch cur.Status {
		case model.AttributeChangePending, model.AttributeChangeExportedNotConfirmed:
			cur.Value = c.Value
			cur.ChangeType = model.AttributeChangeUpdate
			cur.Status = model.AttributeChangePending
			staged++
		default:
			d.logger.Debug("attribute change in flight or failed; corrective value not folded",
				"pending_export_id", pe.ID,
				"sync_rule_id", set.ruleID,
				"attribute_id", c.AttributeID,
				"status", cur.Status,
			)
		}
	}
	return staged
}
