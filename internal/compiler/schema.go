package compiler

import (
	"fmt"
	"sort"

	"cuelang.org/go/cue"

	"github.com/roach88/metasync/internal/model"
)

// CompileSchema reads the metaverse and connected-system sections of a
// configuration value into a Config with Schema populated and Rules empty.
//
// Expected shape:
//
//	metaverse: {
//		object_types: person: id: 1
//		attributes: department: {id: 2, type: "text"}
//	}
//	connected_systems: AD: {
//		id: 2
//		object_types: user: {
//			id: 20
//			attributes: distinguishedName: {id: 203, type: "reference", secondary_external_id: true}
//		}
//	}
func CompileSchema(v cue.Value) (*Config, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	cfg := &Config{}
	var mvTypes, csTypes []model.ObjectType
	var systems []model.ConnectedSystem

	err := eachField(v, "metaverse.object_types", func(name string, ov cue.Value) error {
		id, err := requiredInt(ov, "id")
		if err != nil {
			return err
		}
		mvTypes = append(mvTypes, model.ObjectType{ID: id, Name: name})
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachField(v, "metaverse.attributes", func(name string, av cue.Value) error {
		id, dt, err := parseAttribute(av)
		if err != nil {
			return err
		}
		cfg.MetaverseAttributes = append(cfg.MetaverseAttributes, model.MetaverseAttribute{ID: id, Name: name, Type: dt})
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachField(v, "connected_systems", func(csName string, csv cue.Value) error {
		csID, err := requiredInt(csv, "id")
		if err != nil {
			return err
		}
		systems = append(systems, model.ConnectedSystem{ID: csID, Name: csName})

		return eachField(csv, "object_types", func(otName string, otv cue.Value) error {
			otID, err := requiredInt(otv, "id")
			if err != nil {
				return err
			}
			csTypes = append(csTypes, model.ObjectType{ID: otID, Name: otName, ConnectedSystemID: csID})

			return eachField(otv, "attributes", func(name string, av cue.Value) error {
				attr, err := parseConnectedSystemAttribute(name, av)
				if err != nil {
					return err
				}
				attr.ObjectTypeID = otID
				cfg.ConnectedSystemAttributes = append(cfg.ConnectedSystemAttributes, attr)
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(mvTypes, func(i, j int) bool { return mvTypes[i].ID < mvTypes[j].ID })
	sort.Slice(csTypes, func(i, j int) bool { return csTypes[i].ID < csTypes[j].ID })
	sort.Slice(systems, func(i, j int) bool { return systems[i].ID < systems[j].ID })

	cfg.Schema = model.NewSchema(cfg.MetaverseAttributes, cfg.ConnectedSystemAttributes)
	cfg.Schema.ConnectedSystems = systems
	cfg.Schema.MetaverseObjectTypes = mvTypes
	cfg.Schema.ConnectedSystemObjectTypes = csTypes
	return cfg, nil
}

func parseAttribute(v cue.Value) (int, model.DataType, error) {
	id, err := requiredInt(v, "id")
	if err != nil {
		return 0, model.DataTypeNotSet, err
	}
	typeName, err := requiredString(v, "type")
	if err != nil {
		return 0, model.DataTypeNotSet, err
	}
	dt, err := model.ParseDataType(typeName)
	if err != nil {
		return 0, model.DataTypeNotSet, &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported data type %q", typeName),
			Pos:     v.LookupPath(cue.ParsePath("type")).Pos(),
		}
	}
	return id, dt, nil
}

func parseConnectedSystemAttribute(name string, v cue.Value) (model.ConnectedSystemAttribute, error) {
	id, dt, err := parseAttribute(v)
	if err != nil {
		return model.ConnectedSystemAttribute{}, err
	}
	external, err := optionalBool(v, "external_id", false)
	if err != nil {
		return model.ConnectedSystemAttribute{}, err
	}
	secondary, err := optionalBool(v, "secondary_external_id", false)
	if err != nil {
		return model.ConnectedSystemAttribute{}, err
	}
	if external && secondary {
		return model.ConnectedSystemAttribute{}, &CompileError{
			Field:   "secondary_external_id",
			Message: fmt.Sprintf("attribute %q cannot be both external_id and secondary_external_id", name),
			Pos:     v.Pos(),
		}
	}
	return model.ConnectedSystemAttribute{
		ID:                    id,
		Name:                  name,
		Type:                  dt,
		IsExternalID:          external,
		IsSecondaryExternalID: secondary,
	}, nil
}
