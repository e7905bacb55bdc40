// Package compare implements type-aware equality between an expected
// (canonical) attribute value and an observed one.
//
// Rules, by declared type:
//   - Text: ordinal, case-sensitive
//   - UniqueIdentifier: by UUID value, either side may be textual
//   - Binary: element-wise
//   - Reference: by unresolved textual form
//   - DateTime: same instant, regardless of location
//   - everything else: native equality after projection to the declared type
//
// A nil on exactly one side is never equal.
package compare

import (
	"bytes"

	"github.com/google/uuid"

	"github.com/roach88/metasync/internal/model"
)

type comparer func(expected, actual model.Value) bool

// comparers must have one entry per model.DataType.
var comparers = map[model.DataType]comparer{
	model.DataTypeText:             equalText,
	model.DataTypeNumber:           equalNative,
	model.DataTypeLongNumber:       equalNative,
	model.DataTypeDateTime:         equalDateTime,
	model.DataTypeBoolean:          equalNative,
	model.DataTypeUniqueIdentifier: equalUniqueIdentifier,
	model.DataTypeBinary:           equalBinary,
	model.DataTypeReference:        equalReference,
}

// Equal reports whether expected and actual are the same value of type dt.
// An unknown dt falls back to native equality.
func Equal(dt model.DataType, expected, actual model.Value) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}
	if cmp, ok := comparers[dt]; ok {
		return cmp(expected, actual)
	}
	return equalNative(expected, actual)
}

// Contains reports whether any of actuals equals expected.
func Contains(dt model.DataType, actuals []model.Value, expected model.Value) bool {
	for _, a := range actuals {
		if Equal(dt, expected, a) {
			return true
		}
	}
	return false
}

func equalText(expected, actual model.Value) bool {
	e, ok1 := model.Coerce(model.DataTypeText, expected)
	a, ok2 := model.Coerce(model.DataTypeText, actual)
	if !ok1 || !ok2 {
		return false
	}
	return e.(model.Text) == a.(model.Text)
}

func equalUniqueIdentifier(expected, actual model.Value) bool {
	e, ok1 := asUUID(expected)
	a, ok2 := asUUID(actual)
	return ok1 && ok2 && e == a
}

func asUUID(v model.Value) (uuid.UUID, bool) {
	switch val := v.(type) {
	case model.UniqueIdentifier:
		return uuid.UUID(val), true
	case model.Text:
		u, err := uuid.Parse(string(val))
		return u, err == nil
	}
	return uuid.Nil, false
}

func equalBinary(expected, actual model.Value) bool {
	e, ok1 := expected.(model.Binary)
	a, ok2 := actual.(model.Binary)
	return ok1 && ok2 && bytes.Equal(e, a)
}

func equalReference(expected, actual model.Value) bool {
	e, ok1 := model.Coerce(model.DataTypeReference, expected)
	a, ok2 := model.Coerce(model.DataTypeReference, actual)
	if !ok1 || !ok2 {
		return false
	}
	return e.(model.Reference) == a.(model.Reference)
}

func equalDateTime(expected, actual model.Value) bool {
	e, ok1 := model.Coerce(model.DataTypeDateTime, expected)
	a, ok2 := model.Coerce(model.DataTypeDateTime, actual)
	if !ok1 || !ok2 {
		return false
	}
	return e.(model.DateTime).Time().Equal(a.(model.DateTime).Time())
}

// equalNative compares after projecting actual onto expected's type,
// so a Number and a LongNumber holding the same integer are equal.
func equalNative(expected, actual model.Value) bool {
	a, ok := model.Coerce(expected.DataType(), actual)
	if !ok || a == nil {
		return false
	}
	switch e := expected.(type) {
	case model.Binary:
		return equalBinary(e, a)
	case model.DateTime:
		return equalDateTime(e, a)
	}
	return expected == a
}
