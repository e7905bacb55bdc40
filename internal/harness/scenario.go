package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: a sequence of import and
// export steps against a fresh store, followed by assertions on the
// Pending Exports left behind.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is the directory holding the CUE schema and sync rules.
	// Relative paths are resolved against the scenario's base path.
	Config string `yaml:"config"`

	// MaxRetries overrides the reconciler's retry limit when positive.
	MaxRetries int `yaml:"max_retries,omitempty"`

	// Steps run in order. Each step is an import, an export or a seed.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final store state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one import pass, one export execution or one seeded Pending Export.
type Step struct {
	// Import lists the objects read by an import pass.
	Import []ObjectSpec `yaml:"import,omitempty"`

	// Export records an export attempt. An empty object list exports
	// every Pending Export.
	Export *ExportStep `yaml:"export,omitempty"`

	// Seed writes a Pending Export directly.
	Seed *SeedStep `yaml:"seed,omitempty"`

	// Expect checks the step's summary. Only the counts given are compared.
	Expect map[string]int `yaml:"expect,omitempty"`
}

// ExportStep selects which Pending Exports an export step attempts.
type ExportStep struct {
	Objects []string `yaml:"objects,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "pending_export": the object has a Pending Export matching the fields given
	// - "no_pending_export": the object has no Pending Export
	// - "pending_export_count": the store holds exactly Count Pending Exports
	Type string `yaml:"type"`

	// Object names the connected system object (pending_export, no_pending_export).
	Object string `yaml:"object,omitempty"`

	// Status and ChangeType are the expected aggregate values (pending_export).
	Status     string `yaml:"status,omitempty"`
	ChangeType string `yaml:"change_type,omitempty"`

	// Changes are matched to attribute changes by attribute name.
	// Subset match - only specified fields are validated.
	Changes []ChangeExpect `yaml:"changes,omitempty"`

	// ExactChanges additionally requires no changes beyond those listed.
	ExactChanges bool `yaml:"exact_changes,omitempty"`

	// Count is the expected number of Pending Exports (pending_export_count).
	Count int `yaml:"count,omitempty"`
}

// ChangeExpect describes one expected attribute change.
type ChangeExpect struct {
	Attribute         string  `yaml:"attribute"`
	ChangeType        string  `yaml:"change_type,omitempty"`
	Status            string  `yaml:"status,omitempty"`
	Value             *string `yaml:"value,omitempty"`
	Attempts          *int    `yaml:"attempts,omitempty"`
	LastImportedValue *string `yaml:"last_imported_value,omitempty"`

	// Absent asserts that no change for Attribute exists.
	Absent bool `yaml:"absent,omitempty"`
}

// Assertion type constants.
const (
	AssertPendingExport      = "pending_export"
	AssertNoPendingExport    = "no_pending_export"
	AssertPendingExportCount = "pending_export_count"
)

// Step kinds as they appear in the trace.
const (
	StepImport = "import"
	StepExport = "export"
	StepSeed   = "seed"
)

// Kind reports which of the step kinds s is.
func (s Step) Kind() string {
	switch {
	case s.Seed != nil:
		return StepSeed
	case s.Export != nil:
		return StepExport
	default:
		return StepImport
	}
}

// LoadScenario reads and parses a scenario YAML file. The config path is
// resolved relative to the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the config path relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Config != "" && !filepath.IsAbs(scenario.Config) && basePath != "" {
		scenario.Config = filepath.Join(basePath, scenario.Config)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks required fields and step and assertion shapes.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Config == "" {
		return fmt.Errorf("config is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step Step) error {
	kinds := 0
	if len(step.Import) > 0 {
		kinds++
	}
	if step.Export != nil {
		kinds++
	}
	if step.Seed != nil {
		kinds++
	}
	if kinds > 1 {
		return fmt.Errorf("steps[%d]: a step is exactly one of import, export or seed", index)
	}
	if kinds == 0 {
		return fmt.Errorf("steps[%d]: import objects, export or seed is required", index)
	}

	allowed := importSummaryKeys
	switch step.Kind() {
	case StepExport:
		allowed = exportSummaryKeys
	case StepSeed:
		if err := validateSeed(index, step.Seed); err != nil {
			return err
		}
		allowed = seedSummaryKeys
	}
	for key := range step.Expect {
		if !allowed[key] {
			return fmt.Errorf("steps[%d]: unknown %s expectation %q", index, step.Kind(), key)
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case AssertPendingExport:
		if a.Object == "" {
			return fmt.Errorf("assertions[%d]: object is required for pending_export", index)
		}
		for j, c := range a.Changes {
			if c.Attribute == "" {
				return fmt.Errorf("assertions[%d].changes[%d]: attribute is required", index, j)
			}
		}
	case AssertNoPendingExport:
		if a.Object == "" {
			return fmt.Errorf("assertions[%d]: object is required for no_pending_export", index)
		}
	case AssertPendingExportCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for pending_export_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
