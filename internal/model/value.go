package model

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Value is a sealed interface over the typed attribute values.
// Only Text, Number, LongNumber, DateTime, Boolean, UniqueIdentifier,
// Binary and Reference implement it. A missing value is a nil Value.
type Value interface {
	DataType() DataType
	String() string
	value() // Sealed
}

// Text is a string value. Comparison is ordinal and case-sensitive.
type Text string

func (Text) value() {}
func (Text) DataType() DataType { return DataTypeText }
func (v Text) String() string { return string(v) }

// Number is a 32-bit integer value.
type Number int32

func (Number) value() {}
func (Number) DataType() DataType { return DataTypeNumber }
func (v Number) String() string { return strconv.FormatInt(int64(v), 10) }

// LongNumber is a 64-bit integer value.
type LongNumber int64

func (LongNumber) value() {}
func (LongNumber) DataType() DataType { return DataTypeLongNumber }
func (v LongNumber) String() string { return strconv.FormatInt(int64(v), 10) }

// DateTime is a point in time. Use Time() for arithmetic and comparison.
type DateTime time.Time

func (DateTime) value() {}
func (DateTime) DataType() DataType { return DataTypeDateTime }
func (v DateTime) String() string { return time.Time(v).UTC().Format(time.RFC3339Nano) }

// Time returns the underlying time.Time.
func (v DateTime) Time() time.Time { return time.Time(v) }

// MarshalJSON renders the datetime as an RFC 3339 string.
func (v DateTime) MarshalJSON() ([]byte, error) { return json.Marshal(v.String()) }

// Boolean is a true/false value.
type Boolean bool

func (Boolean) value() {}
func (Boolean) DataType() DataType { return DataTypeBoolean }
func (v Boolean) String() string { return strconv.FormatBool(bool(v)) }

// UniqueIdentifier is a UUID value.
type UniqueIdentifier uuid.UUID

func (UniqueIdentifier) value() {}
func (UniqueIdentifier) DataType() DataType { return DataTypeUniqueIdentifier }
func (v UniqueIdentifier) String() string { return uuid.UUID(v).String() }

// MarshalJSON renders the identifier in its hyphenated form.
func (v UniqueIdentifier) MarshalJSON() ([]byte, error) { return json.Marshal(v.String()) }

// Binary is a byte sequence. Comparison is element-wise.
type Binary []byte

func (Binary) value() {}
func (Binary) DataType() DataType { return DataTypeBinary }
func (v Binary) String() string { return base64.StdEncoding.EncodeToString(v) }

// Reference is the unresolved textual form of a reference to another object
// (for example a distinguished name). Corrective exports carry references in
// this form because the target link does not exist until the export runs.
type Reference string

func (Reference) value() {}
func (Reference) DataType() DataType { return DataTypeReference }
func (v Reference) String() string { return string(v) }

// ParseValue converts the textual representation s into a value of type t.
// Binary values are base64; datetimes are RFC 3339.
func ParseValue(t DataType, s string) (Value, error) {
	switch t {
	case DataTypeText:
		return Text(s), nil
	case DataTypeNumber:
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parse number %q: %w", s, err)
		}
		return Number(n), nil
	case DataTypeLongNumber:
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse long number %q: %w", s, err)
		}
		return LongNumber(n), nil
	case DataTypeDateTime:
		ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("parse datetime %q: %w", s, err)
		}
		return DateTime(ts), nil
	case DataTypeBoolean:
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("parse boolean %q: %w", s, err)
		}
		return Boolean(b), nil
	case DataTypeUniqueIdentifier:
		u, err := uuid.Parse(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("parse unique identifier %q: %w", s, err)
		}
		return UniqueIdentifier(u), nil
	case DataTypeBinary:
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("parse binary: %w", err)
		}
		return Binary(b), nil
	case DataTypeReference:
		return Reference(s), nil
	default:
		return nil, fmt.Errorf("unsupported data type %v", t)
	}
}

// FormatValues renders values for diagnostics, e.g. a change's last imported value.
func FormatValues(vals []Value) string {
	if len(vals) == 0 {
		return "(none)"
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		if v == nil {
			parts[i] = "(null)"
			continue
		}
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

func coerceText(v Value) (Value, bool) {
	switch val := v.(type) {
	case Text:
		return val, true
	case Reference:
		return Text(val), true
	case UniqueIdentifier:
		return Text(val.String()), true
	}
	return nil, false
}

func coerceNumber(v Value) (Value, bool) {
	switch val := v.(type) {
	case Number:
		return val, true
	case LongNumber:
		if val < math.MinInt32 || val > math.MaxInt32 {
			return nil, false
		}
		return Number(val), true
	}
	return nil, false
}

func coerceLongNumber(v Value) (Value, bool) {
	switch val := v.(type) {
	case LongNumber:
		return val, true
	case Number:
		return LongNumber(val), true
	}
	return nil, false
}

func coerceDateTime(v Value) (Value, bool) {
	switch val := v.(type) {
	case DateTime:
		return val, true
	case Text:
		ts, err := time.Parse(time.RFC3339Nano, string(val))
		if err != nil {
			return nil, false
		}
		return DateTime(ts), true
	}
	return nil, false
}

func coerceBoolean(v Value) (Value, bool) {
	if val, ok := v.(Boolean); ok {
		return val, true
	}
	return nil, false
}

func coerceUniqueIdentifier(v Value) (Value, bool) {
	switch val := v.(type) {
	case UniqueIdentifier:
		return val, true
	case Text:
		u, err := uuid.Parse(string(val))
		if err != nil {
			return nil, false
		}
		return UniqueIdentifier(u), true
	}
	return nil, false
}

func coerceBinary(v Value) (Value, bool) {
	if val, ok := v.(Binary); ok {
		return val, true
	}
	return nil, false
}

func coerceReference(v Value) (Value, bool) {
	switch val := v.(type) {
	case Reference:
		return val, true
	case Text:
		return Reference(val), true
	}
	return nil, false
}
