package harness

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/roach88/metasync/internal/engine"
	"github.com/roach88/metasync/internal/model"
)

// objectNamespace seeds name-derived object ids.
var objectNamespace = uuid.MustParse("6f1c1a52-0c47-4b8e-9d3e-5b6f0d2a7c11")

// ObjectSpec is a connected system object as an import read it, written by name.
//
//	- id: alice
//	  connected_system: AD
//	  object_type: user
//	  attributes:
//	    department: Sales
//	    proxyAddresses: [smtp:a@x, smtp:b@x]
//	  metaverse:
//	    id: alice
//	    object_type: person
//	    attributes: {department: Engineering}
type ObjectSpec struct {
	ID              string         `yaml:"id"`
	ConnectedSystem string         `yaml:"connected_system"`
	ObjectType      string         `yaml:"object_type"`
	Attributes      map[string]any `yaml:"attributes,omitempty"`
	Metaverse       *MetaverseSpec `yaml:"metaverse,omitempty"`
}

// MetaverseSpec is the metaverse object an ObjectSpec is joined to.
type MetaverseSpec struct {
	ID         string         `yaml:"id"`
	ObjectType string         `yaml:"object_type"`
	Attributes map[string]any `yaml:"attributes,omitempty"`
}

// ObjectFile is the document shape read by LoadObjects.
type ObjectFile struct {
	Objects []ObjectSpec `yaml:"objects"`
}

// ObjectID maps an object name to its id. Names that already are UUIDs are
// used as-is; anything else gets a stable name-based UUID.
func ObjectID(name string) uuid.UUID {
	if id, err := uuid.Parse(name); err == nil {
		return id
	}
	return uuid.NewSHA1(objectNamespace, []byte(name))
}

// LoadObjects reads an object snapshot file and resolves it against schema.
func LoadObjects(path string, schema *model.Schema) ([]engine.ImportedObject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read objects file: %w", err)
	}

	var file ObjectFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return BuildObjects(file.Objects, schema)
}

// BuildObjects turns object specs into typed objects ready for an import pass.
func BuildObjects(specs []ObjectSpec, schema *model.Schema) ([]engine.ImportedObject, error) {
	objs := make([]engine.ImportedObject, 0, len(specs))
	for i, spec := range specs {
		obj, err := buildObject(spec, schema)
		if err != nil {
			return nil, fmt.Errorf("objects[%d] %q: %w", i, spec.ID, err)
		}
		objs = append(objs, obj)
	}
	return objs, nil
}

func buildObject(spec ObjectSpec, schema *model.Schema) (engine.ImportedObject, error) {
	if spec.ID == "" {
		return engine.ImportedObject{}, fmt.Errorf("id is required")
	}
	cs, ok := schema.ConnectedSystemByName(spec.ConnectedSystem)
	if !ok {
		return engine.ImportedObject{}, fmt.Errorf("unknown connected system %q", spec.ConnectedSystem)
	}
	ot, ok := schema.ObjectTypeByName(cs.ID, spec.ObjectType)
	if !ok {
		return engine.ImportedObject{}, fmt.Errorf("unknown object type %q in %s", spec.ObjectType, cs.Name)
	}

	cso := &model.ConnectedSystemObject{
		ID:                ObjectID(spec.ID),
		ConnectedSystemID: cs.ID,
		TypeID:            ot.ID,
	}
	err := eachAttribute(spec.Attributes, func(name string, raw any) error {
		attr, ok := schema.ConnectedSystemAttributeByName(ot.ID, name)
		if !ok {
			return fmt.Errorf("unknown attribute %q", name)
		}
		vals, err := parseValues(attr.Type, raw)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", name, err)
		}
		for _, v := range vals {
			cso.Attributes = append(cso.Attributes, model.AttributeValue{AttributeID: attr.ID, Value: v})
		}
		return nil
	})
	if err != nil {
		return engine.ImportedObject{}, err
	}

	obj := engine.ImportedObject{CSO: cso}
	if spec.Metaverse == nil {
		return obj, nil
	}

	mvs := spec.Metaverse
	mvt, ok := schema.ObjectTypeByName(0, mvs.ObjectType)
	if !ok {
		return engine.ImportedObject{}, fmt.Errorf("unknown metaverse object type %q", mvs.ObjectType)
	}
	mvID := spec.ID
	if mvs.ID != "" {
		mvID = mvs.ID
	}
	mvo := &model.MetaverseObject{ID: ObjectID(mvID), TypeID: mvt.ID}
	err = eachAttribute(mvs.Attributes, func(name string, raw any) error {
		attr, ok := schema.MetaverseAttributeByName(name)
		if !ok {
			return fmt.Errorf("unknown metaverse attribute %q", name)
		}
		vals, err := parseValues(attr.Type, raw)
		if err != nil {
			return fmt.Errorf("metaverse attribute %q: %w", name, err)
		}
		for _, v := range vals {
			mvo.Attributes = append(mvo.Attributes, model.AttributeValue{AttributeID: attr.ID, Value: v})
		}
		return nil
	})
	if err != nil {
		return engine.ImportedObject{}, err
	}

	cso.MetaverseObjectID = &mvo.ID
	obj.MVO = mvo
	return obj, nil
}

// eachAttribute visits attributes in name order so object layout is stable.
func eachAttribute(attrs map[string]any, fn func(name string, raw any) error) error {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := fn(name, attrs[name]); err != nil {
			return err
		}
	}
	return nil
}

// parseValues converts a YAML scalar or list into typed values.
// A null or empty list means the attribute has no values.
func parseValues(t model.DataType, raw any) ([]model.Value, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]model.Value, 0, len(v))
		for i, elem := range v {
			val, err := parseScalar(t, elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out = append(out, val)
		}
		return out, nil
	default:
		val, err := parseScalar(t, v)
		if err != nil {
			return nil, err
		}
		return []model.Value{val}, nil
	}
}

func parseScalar(t model.DataType, raw any) (model.Value, error) {
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case bool:
		s = strconv.FormatBool(v)
	case time.Time:
		s = v.Format(time.RFC3339Nano)
	default:
		return nil, fmt.Errorf("unsupported YAML value %v (%T)", raw, raw)
	}
	return model.ParseValue(t, s)
}
