package model

import (
	"fmt"
	"strings"
)

// DataType is the declared type of an attribute.
// The set is closed: adding a type means extending dataTypes here and the
// comparer table in internal/compare in the same change.
type DataType int

const (
	DataTypeNotSet DataType = iota
	DataTypeText
	DataTypeNumber
	DataTypeLongNumber
	DataTypeDateTime
	DataTypeBoolean
	DataTypeUniqueIdentifier
	DataTypeBinary
	DataTypeReference
)

// dataTypeSpec is one row of the type dispatch table.
type dataTypeSpec struct {
	name   string
	coerce func(Value) (Value, bool)
}

// dataTypes drives name lookup and value projection for every declared type.
var dataTypes = map[DataType]dataTypeSpec{
	DataTypeText:             {name: "text", coerce: coerceText},
	DataTypeNumber:           {name: "number", coerce: coerceNumber},
	DataTypeLongNumber:       {name: "long_number", coerce: coerceLongNumber},
	DataTypeDateTime:         {name: "datetime", coerce: coerceDateTime},
	DataTypeBoolean:          {name: "boolean", coerce: coerceBoolean},
	DataTypeUniqueIdentifier: {name: "unique_identifier", coerce: coerceUniqueIdentifier},
	DataTypeBinary:           {name: "binary", coerce: coerceBinary},
	DataTypeReference:        {name: "reference", coerce: coerceReference},
}

// AllDataTypes returns every supported data type in declaration order.
func AllDataTypes() []DataType {
	return []DataType{
		DataTypeText,
		DataTypeNumber,
		DataTypeLongNumber,
		DataTypeDateTime,
		DataTypeBoolean,
		DataTypeUniqueIdentifier,
		DataTypeBinary,
		DataTypeReference,
	}
}

func (t DataType) String() string {
	if spec, ok := dataTypes[t]; ok {
		return spec.name
	}
	return "not_set"
}

// Valid reports whether t is one of the supported types.
func (t DataType) Valid() bool {
	_, ok := dataTypes[t]
	return ok
}

// ParseDataType maps a configuration name (e.g. "long_number") to a DataType.
// Matching is case-insensitive; "guid" and "int" aliases are accepted.
func ParseDataType(name string) (DataType, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "guid", "uuid":
		return DataTypeUniqueIdentifier, nil
	case "int", "integer":
		return DataTypeNumber, nil
	case "long", "int64":
		return DataTypeLongNumber, nil
	case "bool":
		return DataTypeBoolean, nil
	case "bytes":
		return DataTypeBinary, nil
	}
	for _, t := range AllDataTypes() {
		if dataTypes[t].name == n {
			return t, nil
		}
	}
	return DataTypeNotSet, fmt.Errorf("unknown data type %q", name)
}

// Coerce projects v onto the declared type t.
// It is a type projection, not an evaluation: a value that cannot be
// represented as t yields (nil, false). A nil v yields (nil, true).
func Coerce(t DataType, v Value) (Value, bool) {
	if v == nil {
		return nil, true
	}
	spec, ok := dataTypes[t]
	if !ok {
		return nil, false
	}
	return spec.coerce(v)
}
