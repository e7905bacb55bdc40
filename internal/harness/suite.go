package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ScenarioNotFoundError is returned when a scenario path doesn't exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario path %q does not exist", e.Path)
}

// FindScenarios returns the scenario files at path. A file is returned as
// is; a directory yields its *.yaml and *.yml files in name order.
func FindScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &ScenarioNotFoundError{Path: path}
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(path, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// SuiteResult summarizes a run over several scenario files.
type SuiteResult struct {
	TotalScenarios int               `json:"total_scenarios"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	Scenarios      []ScenarioReport  `json:"scenarios"`
	Failures       []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioReport is the outcome of one scenario file.
type ScenarioReport struct {
	Scenario     string   `json:"scenario,omitempty"`
	ScenarioPath string   `json:"scenario_path"`
	Pass         bool     `json:"pass"`
	Errors       []string `json:"errors,omitempty"`
}

// ScenarioFailure represents a scenario that failed to load, run or pass.
type ScenarioFailure struct {
	Scenario     string   `json:"scenario,omitempty"`
	ScenarioPath string   `json:"scenario_path"`
	Errors       []string `json:"errors"`
}

// SuiteCheck inspects a finished scenario and returns extra failures,
// such as golden snapshot mismatches.
type SuiteCheck func(scenario *Scenario, result *Result) []string

// RunSuite loads and runs each scenario file, collecting results.
// Config paths are resolved relative to each scenario's directory.
// Checks run only for scenarios that executed.
func RunSuite(paths []string, checks ...SuiteCheck) *SuiteResult {
	result := &SuiteResult{Scenarios: make([]ScenarioReport, 0, len(paths))}

	for _, path := range paths {
		result.TotalScenarios++

		scenario, err := LoadScenario(path)
		if err != nil {
			result.fail(ScenarioFailure{
				ScenarioPath: path,
				Errors:       []string{fmt.Sprintf("failed to load scenario: %v", err)},
			})
			continue
		}

		runResult, err := Run(scenario)
		if err != nil {
			result.fail(ScenarioFailure{
				Scenario:     scenario.Name,
				ScenarioPath: path,
				Errors:       []string{fmt.Sprintf("scenario execution failed: %v", err)},
			})
			continue
		}

		errs := append([]string(nil), runResult.Errors...)
		for _, check := range checks {
			errs = append(errs, check(scenario, runResult)...)
		}
		if len(errs) > 0 {
			result.fail(ScenarioFailure{
				Scenario:     scenario.Name,
				ScenarioPath: path,
				Errors:       errs,
			})
			continue
		}

		result.Passed++
		result.Scenarios = append(result.Scenarios, ScenarioReport{
			Scenario:     scenario.Name,
			ScenarioPath: path,
			Pass:         true,
		})
	}

	return result
}

func (r *SuiteResult) fail(f ScenarioFailure) {
	r.Failed++
	r.Failures = append(r.Failures, f)
	r.Scenarios = append(r.Scenarios, ScenarioReport{
		Scenario:     f.Scenario,
		ScenarioPath: f.ScenarioPath,
		Errors:       f.Errors,
	})
}
