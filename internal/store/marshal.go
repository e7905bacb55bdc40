package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/metasync/internal/model"
)

// valueColumns mirrors the typed value columns of pending_export_attribute_changes.
type valueColumns struct {
	DataType      int
	String        sql.NullString
	Int           sql.NullInt64
	Long          sql.NullInt64
	DateTime      sql.NullString
	Bool          sql.NullBool
	GUID          sql.NullString
	Bytes         []byte
	UnresolvedRef sql.NullString
}

// columnCodec moves one data type in and out of its column.
type columnCodec struct {
	set func(*valueColumns, model.Value) error
	get func(*valueColumns) (model.Value, error)
}

// columnCodecs must have one entry per model.DataType.
var columnCodecs = map[model.DataType]columnCodec{
	model.DataTypeText: {
		set: func(c *valueColumns, v model.Value) error {
			c.String = sql.NullString{String: string(v.(model.Text)), Valid: true}
			return nil
		},
		get: func(c *valueColumns) (model.Value, error) {
			if !c.String.Valid {
				return nil, fmt.Errorf("string_value is null")
			}
			return model.Text(c.String.String), nil
		},
	},
	model.DataTypeNumber: {
		set: func(c *valueColumns, v model.Value) error {
			c.Int = sql.NullInt64{Int64: int64(v.(model.Number)), Valid: true}
			return nil
		},
		get: func(c *valueColumns) (model.Value, error) {
			if !c.Int.Valid {
				return nil, fmt.Errorf("int_value is null")
			}
			return model.Number(c.Int.Int64), nil
		},
	},
	model.DataTypeLongNumber: {
		set: func(c *valueColumns, v model.Value) error {
			c.Long = sql.NullInt64{Int64: int64(v.(model.LongNumber)), Valid: true}
			return nil
		},
		get: func(c *valueColumns) (model.Value, error) {
			if !c.Long.Valid {
				return nil, fmt.Errorf("long_value is null")
			}
			return model.LongNumber(c.Long.Int64), nil
		},
	},
	model.DataTypeDateTime: {
		set: func(c *valueColumns, v model.Value) error {
			c.DateTime = sql.NullString{String: formatTime(v.(model.DateTime).Time()), Valid: true}
			return nil
		},
		get: func(c *valueColumns) (model.Value, error) {
			if !c.DateTime.Valid {
				return nil, fmt.Errorf("datetime_value is null")
			}
			ts, err := parseTime(c.DateTime.String)
			if err != nil {
				return nil, err
			}
			return model.DateTime(ts), nil
		},
	},
	model.DataTypeBoolean: {
		set: func(c *valueColumns, v model.Value) error {
			c.Bool = sql.NullBool{Bool: bool(v.(model.Boolean)), Valid: true}
			return nil
		},
		get: func(c *valueColumns) (model.Value, error) {
			if !c.Bool.Valid {
				return nil, fmt.Errorf("bool_value is null")
			}
			return model.Boolean(c.Bool.Bool), nil
		},
	},
	model.DataTypeUniqueIdentifier: {
		set: func(c *valueColumns, v model.Value) error {
			c.GUID = sql.NullString{String: v.(model.UniqueIdentifier).String(), Valid: true}
			return nil
		},
		get: func(c *valueColumns) (model.Value, error) {
			if !c.GUID.Valid {
				return nil, fmt.Errorf("guid_value is null")
			}
			u, err := uuid.Parse(c.GUID.String)
			if err != nil {
				return nil, fmt.Errorf("guid_value: %w", err)
			}
			return model.UniqueIdentifier(u), nil
		},
	},
	model.DataTypeBinary: {
		set: func(c *valueColumns, v model.Value) error {
			b := v.(model.Binary)
			c.Bytes = make([]byte, len(b))
			copy(c.Bytes, b)
			return nil
		},
		get: func(c *valueColumns) (model.Value, error) {
			if c.Bytes == nil {
				return nil, fmt.Errorf("byte_value is null")
			}
			return model.Binary(c.Bytes), nil
		},
	},
	model.DataTypeReference: {
		set: func(c *valueColumns, v model.Value) error {
			c.UnresolvedRef = sql.NullString{String: string(v.(model.Reference)), Valid: true}
			return nil
		},
		get: func(c *valueColumns) (model.Value, error) {
			if !c.UnresolvedRef.Valid {
				return nil, fmt.Errorf("unresolved_reference_value is null")
			}
			return model.Reference(c.UnresolvedRef.String), nil
		},
	},
}

// marshalValue spreads v across the typed columns.
// A nil value produces all-null columns and data_type 0.
func marshalValue(v model.Value) (valueColumns, error) {
	var c valueColumns
	if v == nil {
		return c, nil
	}
	codec, ok := columnCodecs[v.DataType()]
	if !ok {
		return c, fmt.Errorf("marshal value: unsupported data type %v", v.DataType())
	}
	c.DataType = int(v.DataType())
	if err := codec.set(&c, v); err != nil {
		return c, fmt.Errorf("marshal value: %w", err)
	}
	return c, nil
}

// unmarshalValue rebuilds the typed value from its columns.
func unmarshalValue(c *valueColumns) (model.Value, error) {
	if c.DataType == 0 {
		return nil, nil
	}
	dt := model.DataType(c.DataType)
	codec, ok := columnCodecs[dt]
	if !ok {
		return nil, fmt.Errorf("unmarshal value: unsupported data type %d", c.DataType)
	}
	v, err := codec.get(c)
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s value: %w", dt, err)
	}
	return v, nil
}

// timeLayout has a fixed-width fraction so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullableUUID(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}
