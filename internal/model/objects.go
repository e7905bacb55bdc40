package model

import "github.com/google/uuid"

// AttributeValue is one value of one attribute on an object.
// Multi-valued attributes carry one AttributeValue per value.
type AttributeValue struct {
	AttributeID int   `json:"attribute_id"`
	Value       Value `json:"value"`
}

// MetaverseObject is the canonical identity record.
// Read-only from the point of view of drift detection and reconciliation.
type MetaverseObject struct {
	ID         uuid.UUID        `json:"id"`
	TypeID     int              `json:"type_id"`
	Attributes []AttributeValue `json:"attributes"`
}

// ConnectedSystemObject is a connected system's view of one object, as last read by import.
type ConnectedSystemObject struct {
	ID                uuid.UUID        `json:"id"`
	ConnectedSystemID int              `json:"connected_system_id"`
	TypeID            int              `json:"type_id"`
	Attributes        []AttributeValue `json:"attributes"`

	// MetaverseObjectID is the joined MVO, if any.
	MetaverseObjectID *uuid.UUID `json:"metaverse_object_id,omitempty"`
}

// Values returns every value held for attributeID, in stored order.
func (o *MetaverseObject) Values(attributeID int) []Value {
	return valuesOf(o.Attributes, attributeID)
}

// FirstValue returns the first value held for attributeID, or nil.
func (o *MetaverseObject) FirstValue(attributeID int) Value {
	return firstValueOf(o.Attributes, attributeID)
}

// Values returns every value held for attributeID, in stored order.
func (o *ConnectedSystemObject) Values(attributeID int) []Value {
	return valuesOf(o.Attributes, attributeID)
}

// FirstValue returns the first value held for attributeID, or nil.
func (o *ConnectedSystemObject) FirstValue(attributeID int) Value {
	return firstValueOf(o.Attributes, attributeID)
}

// IsJoined reports whether the CSO is linked to a metaverse object.
func (o *ConnectedSystemObject) IsJoined() bool {
	return o.MetaverseObjectID != nil
}

func valuesOf(attrs []AttributeValue, attributeID int) []Value {
	var out []Value
	for _, av := range attrs {
		if av.AttributeID == attributeID && av.Value != nil {
			out = append(out, av.Value)
		}
	}
	return out
}

func firstValueOf(attrs []AttributeValue, attributeID int) Value {
	for _, av := range attrs {
		if av.AttributeID == attributeID && av.Value != nil {
			return av.Value
		}
	}
	return nil
}
