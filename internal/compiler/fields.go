package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
)

// requiredInt reads a mandatory positive integer field such as an id.
func requiredInt(v cue.Value, field string) (int, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return 0, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%s is required", field),
			Pos:     v.Pos(),
		}
	}
	n, err := f.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	if n <= 0 {
		return 0, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%s must be positive, got %d", field, n),
			Pos:     f.Pos(),
		}
	}
	return int(n), nil
}

func requiredString(v cue.Value, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%s is required", field),
			Pos:     v.Pos(),
		}
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// optionalString returns "" when the field is absent.
func optionalString(v cue.Value, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, field string, def bool) (bool, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return def, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// eachField calls fn for every regular field of the struct at path, in
// declaration order. A missing struct is not an error.
func eachField(v cue.Value, path string, fn func(name string, fv cue.Value) error) error {
	sv := v.LookupPath(cue.ParsePath(path))
	if !sv.Exists() {
		return nil
	}
	iter, err := sv.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		if err := fn(iter.Selector().Unquoted(), iter.Value()); err != nil {
			return err
		}
	}
	return nil
}
