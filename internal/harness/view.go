package harness

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/metasync/internal/model"
)

// Names maps object ids back to the names a scenario used for them.
type Names map[uuid.UUID]string

// Name returns the recorded name for id, or the id itself.
func (n Names) Name(id uuid.UUID) string {
	if name, ok := n[id]; ok {
		return name
	}
	return id.String()
}

// PendingExportView renders a Pending Export as a canonical-JSON-ready map
// using object and attribute names instead of ids. Ids are left out so the
// view stays stable when id generation changes.
func PendingExportView(pe *model.PendingExport, schema model.AttributeLookup, names Names) map[string]any {
	changes := make([]any, 0, len(pe.AttributeChanges))
	for _, c := range pe.AttributeChanges {
		changes = append(changes, changeView(c, schema))
	}

	view := map[string]any{
		"object":      names.Name(pe.ConnectedSystemObjectID),
		"change_type": pe.ChangeType.String(),
		"status":      pe.Status.String(),
		"created_at":  pe.CreatedAt.UTC().Format(time.RFC3339),
		"changes":     changes,
	}
	if pe.SourceMetaverseObjectID != nil {
		view["source"] = names.Name(*pe.SourceMetaverseObjectID)
	}
	return view
}

func changeView(c model.AttributeChange, schema model.AttributeLookup) map[string]any {
	view := map[string]any{
		"attribute":   attributeName(schema, c.AttributeID),
		"change_type": c.ChangeType.String(),
		"status":      c.Status.String(),
		"attempts":    c.ExportAttemptCount,
	}
	if c.Value != nil {
		view["value"] = c.Value.String()
	}
	if c.LastExportedAt != nil {
		view["last_exported_at"] = c.LastExportedAt.UTC().Format(time.RFC3339)
	}
	if c.LastImportedValue != "" {
		view["last_imported_value"] = c.LastImportedValue
	}
	return view
}

func attributeName(schema model.AttributeLookup, id int) string {
	if a, ok := schema.ConnectedSystemAttribute(id); ok {
		return a.Name
	}
	return strconv.Itoa(id)
}
