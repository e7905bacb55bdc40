package model

// SyncRuleDirection says which way a rule flows attribute values.
type SyncRuleDirection int

const (
	DirectionImport SyncRuleDirection = iota + 1 // connected system → metaverse
	DirectionExport                              // metaverse → connected system
)

func (d SyncRuleDirection) String() string {
	switch d {
	case DirectionImport:
		return "import"
	case DirectionExport:
		return "export"
	default:
		return "unknown"
	}
}

// SyncRule binds one connected system object type to one metaverse object type.
type SyncRule struct {
	ID                          int               `json:"id"`
	Name                        string            `json:"name"`
	Enabled                     bool              `json:"enabled"`
	Direction                   SyncRuleDirection `json:"direction"`
	ConnectedSystemID           int               `json:"connected_system_id"`
	ConnectedSystemObjectTypeID int               `json:"connected_system_object_type_id"`
	MetaverseObjectTypeID       int               `json:"metaverse_object_type_id"`

	// EnforceState makes an export rule authoritative: any divergence between
	// the value it dictates and the value on the CSO is drift.
	EnforceState bool `json:"enforce_state"`

	AttributeFlows []AttributeFlow `json:"attribute_flows"`
}

// AttributeFlow is one mapping within a rule.
// Export flows target a connected-system attribute; import flows target a
// metaverse attribute. A zero target id is a configuration gap.
type AttributeFlow struct {
	ID                               int          `json:"id"`
	Sources                          []FlowSource `json:"sources"`
	TargetConnectedSystemAttributeID int          `json:"target_connected_system_attribute_id,omitempty"`
	TargetMetaverseAttributeID       int          `json:"target_metaverse_attribute_id,omitempty"`
}

// FlowSource is either a direct attribute reference or an expression.
type FlowSource struct {
	MetaverseAttributeID       int    `json:"metaverse_attribute_id,omitempty"`
	ConnectedSystemAttributeID int    `json:"connected_system_attribute_id,omitempty"`
	Expression                 string `json:"expression,omitempty"`
}

// IsExpression reports whether the source is computed rather than a direct reference.
func (s FlowSource) IsExpression() bool {
	return s.Expression != ""
}
