package model

import (
	"time"

	"github.com/google/uuid"
)

// PendingExportChangeType is the kind of operation a Pending Export asks for.
type PendingExportChangeType int

const (
	PendingExportCreate PendingExportChangeType = iota + 1
	PendingExportUpdate
	PendingExportDelete
)

func (t PendingExportChangeType) String() string {
	switch t {
	case PendingExportCreate:
		return "Create"
	case PendingExportUpdate:
		return "Update"
	case PendingExportDelete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// PendingExportStatus is the aggregate status of a Pending Export.
type PendingExportStatus int

const (
	PendingExportPending           PendingExportStatus = iota + 1 // not yet exported
	PendingExportExecuting                                        // an export executor holds it
	PendingExportExported                                         // awaiting a confirming import
	PendingExportExportNotImported                                // some changes need re-export
	PendingExportFailed                                           // every remaining change failed
)

func (s PendingExportStatus) String() string {
	switch s {
	case PendingExportPending:
		return "Pending"
	case PendingExportExecuting:
		return "Executing"
	case PendingExportExported:
		return "Exported"
	case PendingExportExportNotImported:
		return "ExportNotImported"
	case PendingExportFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// AttributeChangeType is the kind of change to one attribute.
type AttributeChangeType int

const (
	AttributeChangeAdd AttributeChangeType = iota + 1
	AttributeChangeUpdate
	AttributeChangeRemove
	AttributeChangeRemoveAll
)

func (t AttributeChangeType) String() string {
	switch t {
	case AttributeChangeAdd:
		return "Add"
	case AttributeChangeUpdate:
		return "Update"
	case AttributeChangeRemove:
		return "Remove"
	case AttributeChangeRemoveAll:
		return "RemoveAll"
	default:
		return "Unknown"
	}
}

// AttributeChangeStatus tracks one attribute change through export and confirmation.
//
//	Pending → ExportedPendingConfirmation → (removed | ExportedNotConfirmed | Failed)
type AttributeChangeStatus int

const (
	AttributeChangePending AttributeChangeStatus = iota + 1
	AttributeChangeExportedPendingConfirmation
	AttributeChangeExportedNotConfirmed
	AttributeChangeFailed
)

func (s AttributeChangeStatus) String() string {
	switch s {
	case AttributeChangePending:
		return "Pending"
	case AttributeChangeExportedPendingConfirmation:
		return "ExportedPendingConfirmation"
	case AttributeChangeExportedNotConfirmed:
		return "ExportedNotConfirmed"
	case AttributeChangeFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// AttributeChange is one intended change to one attribute of the target CSO.
type AttributeChange struct {
	ID              uuid.UUID           `json:"id"`
	PendingExportID uuid.UUID           `json:"pending_export_id"`
	AttributeID     int                 `json:"attribute_id"`
	ChangeType      AttributeChangeType `json:"change_type"`

	// Value is the intended value, typed to the attribute's declared type.
	// References are carried unresolved. Nil means "clear".
	Value Value `json:"value,omitempty"`

	Status AttributeChangeStatus `json:"status"`

	// ExportAttemptCount is incremented by export execution only.
	ExportAttemptCount int        `json:"export_attempt_count"`
	LastExportedAt     *time.Time `json:"last_exported_at,omitempty"`

	// LastImportedValue is what the confirming import saw when the change did not confirm.
	LastImportedValue string `json:"last_imported_value,omitempty"`
}

// PendingExport is one outstanding intended change to exactly one CSO.
// It exclusively owns its AttributeChanges.
type PendingExport struct {
	ID                      uuid.UUID               `json:"id"`
	ConnectedSystemID       int                     `json:"connected_system_id"`
	ConnectedSystemObjectID uuid.UUID               `json:"connected_system_object_id"`
	SourceMetaverseObjectID *uuid.UUID              `json:"source_metaverse_object_id,omitempty"`
	ChangeType              PendingExportChangeType `json:"change_type"`
	Status                  PendingExportStatus     `json:"status"`
	CreatedAt               time.Time               `json:"created_at"`
	AttributeChanges        []AttributeChange       `json:"attribute_changes"`
}

// Change returns a pointer to the change with the given id, or nil.
func (pe *PendingExport) Change(id uuid.UUID) *AttributeChange {
	for i := range pe.AttributeChanges {
		if pe.AttributeChanges[i].ID == id {
			return &pe.AttributeChanges[i]
		}
	}
	return nil
}

// ChangeForAttribute returns the first change targeting attributeID, or nil.
func (pe *PendingExport) ChangeForAttribute(attributeID int) *AttributeChange {
	for i := range pe.AttributeChanges {
		if pe.AttributeChanges[i].AttributeID == attributeID {
			return &pe.AttributeChanges[i]
		}
	}
	return nil
}

// AddChange appends c, taking ownership of it.
func (pe *PendingExport) AddChange(c AttributeChange) {
	c.PendingExportID = pe.ID
	pe.AttributeChanges = append(pe.AttributeChanges, c)
}

// RemoveChanges drops every change whose id is in ids and reports how many were removed.
// The relative order of the remaining changes is preserved.
func (pe *PendingExport) RemoveChanges(ids map[uuid.UUID]struct{}) int {
	if len(ids) == 0 {
		return 0
	}
	kept := pe.AttributeChanges[:0]
	removed := 0
	for _, c := range pe.AttributeChanges {
		if _, drop := ids[c.ID]; drop {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	// Clear the tail so dropped values can be collected.
	for i := len(kept); i < len(pe.AttributeChanges); i++ {
		pe.AttributeChanges[i] = AttributeChange{}
	}
	pe.AttributeChanges = kept
	return removed
}

// RecomputeStatus derives the aggregate status from the remaining changes:
//   - every change Failed → Failed
//   - any change Pending or ExportedNotConfirmed → ExportNotImported
//   - otherwise (some Failed, the rest awaiting confirmation) → Exported
//
// With no changes left the status is left untouched; the caller deletes the export.
func (pe *PendingExport) RecomputeStatus() PendingExportStatus {
	if len(pe.AttributeChanges) == 0 {
		return pe.Status
	}

	allFailed := true
	needsExport := false
	for _, c := range pe.AttributeChanges {
		if c.Status != AttributeChangeFailed {
			allFailed = false
		}
		if c.Status == AttributeChangePending || c.Status == AttributeChangeExportedNotConfirmed {
			needsExport = true
		}
	}

	switch {
	case allFailed:
		pe.Status = PendingExportFailed
	case needsExport:
		pe.Status = PendingExportExportNotImported
	default:
		pe.Status = PendingExportExported
	}
	return pe.Status
}

// RecordExportAttempt applies the export executor's side of the contract:
// every change that still needs exporting moves to ExportedPendingConfirmation
// and its attempt counter is incremented. Failed changes are left alone.
// Returns the number of changes attempted.
func (pe *PendingExport) RecordExportAttempt(at time.Time) int {
	attempted := 0
	for i := range pe.AttributeChanges {
		c := &pe.AttributeChanges[i]
		if c.Status != AttributeChangePending && c.Status != AttributeChangeExportedNotConfirmed {
			continue
		}
		c.Status = AttributeChangeExportedPendingConfirmation
		c.ExportAttemptCount++
		ts := at
		c.LastExportedAt = &ts
		attempted++
	}
	if attempted > 0 {
		pe.Status = PendingExportExported
	}
	return attempted
}

// Clone returns a deep copy; the change slice is not shared.
func (pe *PendingExport) Clone() *PendingExport {
	cp := *pe
	if pe.SourceMetaverseObjectID != nil {
		id := *pe.SourceMetaverseObjectID
		cp.SourceMetaverseObjectID = &id
	}
	cp.AttributeChanges = make([]AttributeChange, len(pe.AttributeChanges))
	copy(cp.AttributeChanges, pe.AttributeChanges)
	return &cp
}
