package model

// MetaverseAttribute describes one attribute of the metaverse schema.
type MetaverseAttribute struct {
	ID   int      `json:"id"`
	Name string   `json:"name"`
	Type DataType `json:"type"`
}

// ConnectedSystemAttribute describes one attribute of a connected-system object type.
type ConnectedSystemAttribute struct {
	ID           int      `json:"id"`
	Name         string   `json:"name"`
	Type         DataType `json:"type"`
	ObjectTypeID int      `json:"object_type_id"`

	// IsExternalID marks the primary, system-assigned matching identifier.
	IsExternalID bool `json:"is_external_id,omitempty"`

	// IsSecondaryExternalID marks an identifier only known once the object
	// exists in the target (e.g. a distinguished name).
	IsSecondaryExternalID bool `json:"is_secondary_external_id,omitempty"`
}

// ObjectType is a named object type, either in the metaverse or in a connected system.
type ObjectType struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	ConnectedSystemID int    `json:"connected_system_id,omitempty"` // 0 for metaverse types
}

// ConnectedSystem is a named external system.
type ConnectedSystem struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// AttributeLookup resolves attribute ids to their definitions.
// Rules and changes carry ids only; callers inject a lookup at use time.
type AttributeLookup interface {
	MetaverseAttribute(id int) (MetaverseAttribute, bool)
	ConnectedSystemAttribute(id int) (ConnectedSystemAttribute, bool)
}

// Schema is the in-memory attribute catalogue. It implements AttributeLookup.
// A Schema is built once (see internal/compiler) and is read-only afterwards,
// so it may be shared across goroutines.
type Schema struct {
	ConnectedSystems           []ConnectedSystem
	MetaverseObjectTypes       []ObjectType
	ConnectedSystemObjectTypes []ObjectType

	mvAttrs map[int]MetaverseAttribute
	csAttrs map[int]ConnectedSystemAttribute
}

// NewSchema indexes the given attribute definitions.
func NewSchema(mv []MetaverseAttribute, cs []ConnectedSystemAttribute) *Schema {
	s := &Schema{
		mvAttrs: make(map[int]MetaverseAttribute, len(mv)),
		csAttrs: make(map[int]ConnectedSystemAttribute, len(cs)),
	}
	for _, a := range mv {
		s.mvAttrs[a.ID] = a
	}
	for _, a := range cs {
		s.csAttrs[a.ID] = a
	}
	return s
}

// MetaverseAttribute implements AttributeLookup.
func (s *Schema) MetaverseAttribute(id int) (MetaverseAttribute, bool) {
	a, ok := s.mvAttrs[id]
	return a, ok
}

// ConnectedSystemAttribute implements AttributeLookup.
func (s *Schema) ConnectedSystemAttribute(id int) (ConnectedSystemAttribute, bool) {
	a, ok := s.csAttrs[id]
	return a, ok
}

// MetaverseAttributeByName finds a metaverse attribute by name.
func (s *Schema) MetaverseAttributeByName(name string) (MetaverseAttribute, bool) {
	for _, a := range s.mvAttrs {
		if a.Name == name {
			return a, true
		}
	}
	return MetaverseAttribute{}, false
}

// ConnectedSystemAttributeByName finds an attribute of a connected-system object type by name.
func (s *Schema) ConnectedSystemAttributeByName(objectTypeID int, name string) (ConnectedSystemAttribute, bool) {
	for _, a := range s.csAttrs {
		if a.ObjectTypeID == objectTypeID && a.Name == name {
			return a, true
		}
	}
	return ConnectedSystemAttribute{}, false
}

// ConnectedSystemObjectType finds a connected-system object type by id.
func (s *Schema) ConnectedSystemObjectType(id int) (ObjectType, bool) {
	for _, t := range s.ConnectedSystemObjectTypes {
		if t.ID == id {
			return t, true
		}
	}
	return ObjectType{}, false
}

// ConnectedSystemByName finds a connected system by name.
func (s *Schema) ConnectedSystemByName(name string) (ConnectedSystem, bool) {
	for _, cs := range s.ConnectedSystems {
		if cs.Name == name {
			return cs, true
		}
	}
	return ConnectedSystem{}, false
}

// ObjectTypeByName finds an object type by name. csID is the owning
// connected system, or 0 for a metaverse object type.
func (s *Schema) ObjectTypeByName(csID int, name string) (ObjectType, bool) {
	types := s.ConnectedSystemObjectTypes
	if csID == 0 {
		types = s.MetaverseObjectTypes
	}
	for _, t := range types {
		if t.Name == name && t.ConnectedSystemID == csID {
			return t, true
		}
	}
	return ObjectType{}, false
}
