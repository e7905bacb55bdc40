package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/metasync/internal/model"
)

// Snapshot captures a scenario's step summaries and final Pending Exports.
// It is serialized as canonical JSON for deterministic comparison.
type Snapshot struct {
	ScenarioName string
	Trace        []TraceEvent
	State        []map[string]any
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON
// serialization, which only handles maps, slices and primitives.
func (s *Snapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		summary := make(map[string]any, len(event.Summary))
		for k, v := range event.Summary {
			summary[k] = v
		}
		trace[i] = map[string]any{
			"step":    event.Step,
			"kind":    event.Kind,
			"summary": summary,
		}
	}

	state := make([]any, len(s.State))
	for i, pe := range s.State {
		state[i] = pe
	}

	return map[string]any{
		"scenario_name":   s.ScenarioName,
		"trace":           trace,
		"pending_exports": state,
	}
}

// MarshalSnapshot renders a result as canonical JSON.
func MarshalSnapshot(name string, result *Result) ([]byte, error) {
	snapshot := Snapshot{
		ScenarioName: name,
		Trace:        result.Trace,
		State:        result.State,
	}
	return model.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
