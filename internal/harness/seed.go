package harness

import (
	"fmt"

	"github.com/roach88/metasync/internal/model"
)

// SeedStep writes a Pending Export straight to the store, the way outbound
// sync would have staged it for a newly provisioned object.
//
//	- seed:
//	    object: dave
//	    connected_system: AD
//	    object_type: user
//	    source: dave
//	    change_type: Create
//	    changes:
//	      - {attribute: distinguishedName, change_type: Add, value: "CN=Dave"}
type SeedStep struct {
	Object          string       `yaml:"object"`
	ConnectedSystem string       `yaml:"connected_system"`
	ObjectType      string       `yaml:"object_type"`
	Source          string       `yaml:"source,omitempty"`
	ChangeType      string       `yaml:"change_type"`
	Changes         []SeedChange `yaml:"changes"`
}

// SeedChange is one attribute change of a seeded Pending Export.
// A missing value means "clear".
type SeedChange struct {
	Attribute  string `yaml:"attribute"`
	ChangeType string `yaml:"change_type"`
	Value      any    `yaml:"value,omitempty"`
}

var pendingExportChangeTypes = map[string]model.PendingExportChangeType{
	model.PendingExportCreate.String(): model.PendingExportCreate,
	model.PendingExportUpdate.String(): model.PendingExportUpdate,
	model.PendingExportDelete.String(): model.PendingExportDelete,
}

var attributeChangeTypes = map[string]model.AttributeChangeType{
	model.AttributeChangeAdd.String():       model.AttributeChangeAdd,
	model.AttributeChangeUpdate.String():    model.AttributeChangeUpdate,
	model.AttributeChangeRemove.String():    model.AttributeChangeRemove,
	model.AttributeChangeRemoveAll.String(): model.AttributeChangeRemoveAll,
}

// validateSeed checks the shape of a seed step; names are resolved at run time.
func validateSeed(index int, seed *SeedStep) error {
	switch {
	case seed.Object == "":
		return fmt.Errorf("steps[%d]: seed object is required", index)
	case seed.ConnectedSystem == "" || seed.ObjectType == "":
		return fmt.Errorf("steps[%d]: seed connected_system and object_type are required", index)
	case len(seed.Changes) == 0:
		return fmt.Errorf("steps[%d]: seed needs at least one change", index)
	}
	if _, ok := pendingExportChangeTypes[seed.ChangeType]; !ok {
		return fmt.Errorf("steps[%d]: unknown seed change_type %q", index, seed.ChangeType)
	}
	for j, c := range seed.Changes {
		if c.Attribute == "" {
			return fmt.Errorf("steps[%d].changes[%d]: attribute is required", index, j)
		}
		if _, ok := attributeChangeTypes[c.ChangeType]; !ok {
			return fmt.Errorf("steps[%d].changes[%d]: unknown change_type %q", index, j, c.ChangeType)
		}
	}
	return nil
}

// buildSeed resolves a seed step against schema into a Pending Export with
// every change Pending.
func buildSeed(seed *SeedStep, schema *model.Schema, ids model.IDGenerator, clock model.Clock) (*model.PendingExport, error) {
	cs, ok := schema.ConnectedSystemByName(seed.ConnectedSystem)
	if !ok {
		return nil, fmt.Errorf("unknown connected system %q", seed.ConnectedSystem)
	}
	ot, ok := schema.ObjectTypeByName(cs.ID, seed.ObjectType)
	if !ok {
		return nil, fmt.Errorf("unknown object type %q in %s", seed.ObjectType, cs.Name)
	}

	pe := &model.PendingExport{
		ID:                      ids.NewID(),
		ConnectedSystemID:       cs.ID,
		ConnectedSystemObjectID: ObjectID(seed.Object),
		ChangeType:              pendingExportChangeTypes[seed.ChangeType],
		Status:                  model.PendingExportPending,
		CreatedAt:               clock.Now(),
	}
	if seed.Source != "" {
		src := ObjectID(seed.Source)
		pe.SourceMetaverseObjectID = &src
	}

	for _, sc := range seed.Changes {
		attr, ok := schema.ConnectedSystemAttributeByName(ot.ID, sc.Attribute)
		if !ok {
			return nil, fmt.Errorf("unknown attribute %q", sc.Attribute)
		}
		var value model.Value
		if sc.Value != nil {
			v, err := parseScalar(attr.Type, sc.Value)
			if err != nil {
				return nil, fmt.Errorf("attribute %q: %w", sc.Attribute, err)
			}
			value = v
		}
		pe.AddChange(model.AttributeChange{
			ID:          ids.NewID(),
			AttributeID: attr.ID,
			ChangeType:  attributeChangeTypes[sc.ChangeType],
			Value:       value,
			Status:      model.AttributeChangePending,
		})
	}
	return pe, nil
}
