package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/metasync/internal/model"
	"github.com/roach88/metasync/internal/store"
)

// AssertionContext gives assertions access to the final store state.
type AssertionContext struct {
	Ctx    context.Context
	Store  *store.Store
	Schema model.AttributeLookup
	Names  Names
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Object   string       // Object the assertion is about, if any
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Step summaries for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Object != "" {
		fmt.Fprintf(&buf, " (%s)", e.Object)
	}
	buf.WriteByte('\n')

	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nSteps:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %v\n", event.Step, event.Kind, event.Summary)
		}
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertPendingExport:
			err = assertPendingExport(actx, a)
		case AssertNoPendingExport:
			err = assertNoPendingExport(actx, a)
		case AssertPendingExportCount:
			err = assertPendingExportCount(actx, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err == nil {
			continue
		}
		if ae, ok := err.(*AssertionError); ok {
			ae.Trace = result.Trace
		}
		errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
	}
	return errs
}

// assertPendingExport checks the object's Pending Export against the
// expected aggregate fields and attribute changes (subset semantics).
func assertPendingExport(actx *AssertionContext, a Assertion) error {
	pe, err := actx.Store.GetPendingExportByTargetObjectID(actx.Ctx, ObjectID(a.Object))
	if err != nil {
		return fmt.Errorf("load pending export for %s: %w", a.Object, err)
	}
	if pe == nil {
		return &AssertionError{
			Type:     AssertPendingExport,
			Object:   a.Object,
			Expected: "a pending export",
			Actual:   "none",
		}
	}

	if a.Status != "" && a.Status != pe.Status.String() {
		return mismatch(a, "status", a.Status, pe.Status.String())
	}
	if a.ChangeType != "" && a.ChangeType != pe.ChangeType.String() {
		return mismatch(a, "change_type", a.ChangeType, pe.ChangeType.String())
	}

	expected := 0
	for _, ce := range a.Changes {
		c := findChange(pe, actx.Schema, ce.Attribute)
		if ce.Absent {
			if c != nil {
				return mismatch(a, ce.Attribute, "no change", fmt.Sprintf("%s change (%s)", c.ChangeType, c.Status))
			}
			continue
		}
		expected++
		if c == nil {
			return mismatch(a, ce.Attribute, "a change", "none")
		}
		if err := matchChange(a, ce, c); err != nil {
			return err
		}
	}

	if a.ExactChanges && expected != len(pe.AttributeChanges) {
		return mismatch(a, "changes", fmt.Sprintf("%d changes", expected), fmt.Sprintf("%d changes", len(pe.AttributeChanges)))
	}
	return nil
}

func matchChange(a Assertion, ce ChangeExpect, c *model.AttributeChange) error {
	field := func(name string) string { return ce.Attribute + "." + name }

	if ce.ChangeType != "" && ce.ChangeType != c.ChangeType.String() {
		return mismatch(a, field("change_type"), ce.ChangeType, c.ChangeType.String())
	}
	if ce.Status != "" && ce.Status != c.Status.String() {
		return mismatch(a, field("status"), ce.Status, c.Status.String())
	}
	if ce.Value != nil {
		actual := ""
		if c.Value != nil {
			actual = c.Value.String()
		}
		if *ce.Value != actual {
			return mismatch(a, field("value"), *ce.Value, actual)
		}
	}
	if ce.Attempts != nil && *ce.Attempts != c.ExportAttemptCount {
		return mismatch(a, field("attempts"), fmt.Sprint(*ce.Attempts), fmt.Sprint(c.ExportAttemptCount))
	}
	if ce.LastImportedValue != nil && *ce.LastImportedValue != c.LastImportedValue {
		return mismatch(a, field("last_imported_value"), *ce.LastImportedValue, c.LastImportedValue)
	}
	return nil
}

func findChange(pe *model.PendingExport, schema model.AttributeLookup, name string) *model.AttributeChange {
	for i := range pe.AttributeChanges {
		if attributeName(schema, pe.AttributeChanges[i].AttributeID) == name {
			return &pe.AttributeChanges[i]
		}
	}
	return nil
}

func assertNoPendingExport(actx *AssertionContext, a Assertion) error {
	pe, err := actx.Store.GetPendingExportByTargetObjectID(actx.Ctx, ObjectID(a.Object))
	if err != nil {
		return fmt.Errorf("load pending export for %s: %w", a.Object, err)
	}
	if pe != nil {
		return &AssertionError{
			Type:     AssertNoPendingExport,
			Object:   a.Object,
			Expected: "no pending export",
			Actual:   fmt.Sprintf("%s pending export with %d changes (%s)", pe.ChangeType, len(pe.AttributeChanges), pe.Status),
		}
	}
	return nil
}

func assertPendingExportCount(actx *AssertionContext, a Assertion) error {
	n, err := actx.Store.CountPendingExports(actx.Ctx)
	if err != nil {
		return fmt.Errorf("count pending exports: %w", err)
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertPendingExportCount,
			Expected: fmt.Sprintf("%d pending exports", a.Count),
			Actual:   fmt.Sprintf("%d pending exports", n),
		}
	}
	return nil
}

func mismatch(a Assertion, field, expected, actual string) *AssertionError {
	return &AssertionError{
		Type:     a.Type,
		Object:   a.Object,
		Expected: fmt.Sprintf("%s = %s", field, expected),
		Actual:   fmt.Sprintf("%s = %s", field, actual),
	}
}
