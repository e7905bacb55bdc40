package harness

import "github.com/roach88/metasync/internal/engine"

// TraceEvent records what one scenario step did.
type TraceEvent struct {
	Step    int            `json:"step"`
	Kind    string         `json:"kind"` // "import", "export" or "seed"
	Summary map[string]int `json:"summary"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Trace holds one event per executed step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation, invariant and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the canonical view of every Pending Export left in the store.
	State []map[string]any `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStepTrace adds a step's summary to the trace.
func (r *Result) AddStepTrace(step int, kind string, summary map[string]int) {
	r.Trace = append(r.Trace, TraceEvent{
		Step:    step,
		Kind:    kind,
		Summary: summary,
	})
}

var importSummaryKeys = map[string]bool{
	"processed":          true,
	"skipped":            true,
	"confirmed":          true,
	"retried":            true,
	"failed":             true,
	"deleted":            true,
	"transitioned":       true,
	"drifted_objects":    true,
	"drifted_attributes": true,
	"changes_staged":     true,
	"exports_created":    true,
}

var exportSummaryKeys = map[string]bool{
	"pending_exports": true,
	"changes":         true,
}

var seedSummaryKeys = map[string]bool{
	"changes": true,
}

func importSummaryMap(s engine.ImportSummary) map[string]int {
	return map[string]int{
		"processed":          s.Processed,
		"skipped":            s.Skipped,
		"confirmed":          s.Confirmed,
		"retried":            s.Retried,
		"failed":             s.Failed,
		"deleted":            s.Deleted,
		"transitioned":       s.Transitioned,
		"drifted_objects":    s.DriftedObjects,
		"drifted_attributes": s.DriftedAttributes,
		"changes_staged":     s.ChangesStaged,
		"exports_created":    s.ExportsCreated,
	}
}

func exportSummaryMap(s engine.ExportSummary) map[string]int {
	return map[string]int{
		"pending_exports": s.PendingExports,
		"changes":         s.Changes,
	}
}
