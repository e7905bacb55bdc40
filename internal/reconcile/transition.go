package reconcile

import "github.com/roach88/metasync/internal/model"

// transitionCreateToUpdate reclassifies a Create export as an Update once its
// secondary external identifier has been confirmed and other changes remain.
// Later retries then address an object that exists instead of creating it again.
func (r *Reconciler) transitionCreateToUpdate(pe *model.PendingExport, confirmedAttrs map[int]struct{}) bool {
	if pe.ChangeType != model.PendingExportCreate || len(pe.AttributeChanges) == 0 {
		return false
	}
	for attrID := range confirmedAttrs {
		attr, ok := r.lookup.ConnectedSystemAttribute(attrID)
		if !ok || !attr.IsSecondaryExternalID {
			continue
		}
		pe.ChangeType = model.PendingExportUpdate
		r.logger.Info("create export transitioned to update",
			"pending_export_id", pe.ID,
			"cso_id", pe.ConnectedSystemObjectID,
			"secondary_external_id_attribute", attr.Name,
			"remaining", len(pe.AttributeChanges),
		)
		return true
	}
	return false
}
