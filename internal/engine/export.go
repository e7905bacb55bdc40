package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/metasync/internal/model"
)

// ExportSummary totals an export pass.
type ExportSummary struct {
	PendingExports int // exports with at least one change attempted
	Changes        int // attribute changes attempted
}

// RecordExportAttempt marks every change on the object's Pending Export that
// needs exporting as ExportedPendingConfirmation and increments its attempt
// counter, as a connector's export executor would after writing them.
//
// Returns the updated Pending Export and the number of changes attempted.
// Returns ErrNoPendingExport if the object has none.
func (e *Engine) RecordExportAttempt(ctx context.Context, csoID uuid.UUID) (*model.PendingExport, int, error) {
	pe, err := e.store.GetPendingExportByTargetObjectID(ctx, csoID)
	if err != nil {
		return nil, 0, newObjectError(StageExport, csoID, err)
	}
	if pe == nil {
		return nil, 0, fmt.Errorf("record export attempt for cso %s: %w", csoID, ErrNoPendingExport)
	}

	n, err := e.recordAttempt(ctx, pe)
	if err != nil {
		return nil, 0, err
	}
	return pe, n, nil
}

// ExportAll records an export attempt against every stored Pending Export.
// Exports whose changes are all Failed or already awaiting confirmation are
// left untouched.
func (e *Engine) ExportAll(ctx context.Context) (ExportSummary, error) {
	exports, err := e.store.ListPendingExports(ctx)
	if err != nil {
		return ExportSummary{}, fmt.Errorf("export all: %w", err)
	}

	var summary ExportSummary
	for _, pe := range exports {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		n, err := e.recordAttempt(context.WithoutCancel(ctx), pe)
		if err != nil {
			return summary, err
		}
		if n > 0 {
			summary.PendingExports++
			summary.Changes += n
		}
	}

	e.logger.Info("export pass finished",
		"pending_exports", summary.PendingExports,
		"changes", summary.Changes,
	)
	return summary, nil
}

func (e *Engine) recordAttempt(ctx context.Context, pe *model.PendingExport) (int, error) {
	n := pe.RecordExportAttempt(e.clock.Now())
	if n == 0 {
		e.logger.Debug("nothing to export",
			"pending_export_id", pe.ID,
			"status", pe.Status,
		)
		return 0, nil
	}
	if err := e.store.UpdatePendingExport(ctx, pe); err != nil {
		return 0, newObjectError(StageExport, pe.ConnectedSystemObjectID, err)
	}
	e.metrics.ExportAttempts(n)
	e.logger.Debug("export attempt recorded",
		"pending_export_id", pe.ID,
		"cso_id", pe.ConnectedSystemObjectID,
		"changes", n,
	)
	return n, nil
}
