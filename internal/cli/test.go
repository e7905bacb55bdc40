package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/metasync/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
	Golden string // golden file directory
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios>",
		Short: "Run reconciliation scenarios",
		Long: `Run scenario files against the engine using a fresh in-memory database
per scenario. Each scenario's step expectations, store invariants and final
assertions are checked. When a golden file exists for a scenario its
snapshot is compared too.

<scenarios> is a scenario file or a directory of *.yaml files. Golden files
are read from <dir>/golden/<scenario name>.golden unless --golden is set.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  metasync test ./scenarios
  metasync test ./scenarios --filter "retry*"
  metasync test ./scenarios --update
  metasync test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.Golden, "golden", "", "golden file directory")

	return cmd
}

func runTests(opts *TestOptions, scenarios string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	paths, err := harness.FindScenarios(scenarios)
	var notFound *harness.ScenarioNotFoundError
	if errors.As(err, &notFound) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scenarios not found: %s", scenarios), nil)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to find scenarios", err)
	}

	paths, err = filterScenarios(paths, opts.Filter)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "invalid filter pattern", err)
	}

	goldenDir := opts.Golden
	if goldenDir == "" {
		goldenDir = filepath.Join(scenarioRoot(scenarios), "golden")
	}
	formatter.VerboseLog("Running %d scenario(s), golden files in %s", len(paths), goldenDir)

	result := harness.RunSuite(paths, goldenCheck(goldenDir, opts.Update))

	if formatter.Format == "json" {
		if err := outputTestJSON(formatter, result); err != nil {
			return err
		}
	} else {
		outputTestText(formatter, result, opts.Update)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", result.Failed, result.TotalScenarios))
	}
	return nil
}

// scenarioRoot is the directory a scenarios argument names.
func scenarioRoot(path string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return path
	}
	return filepath.Dir(path)
}

// filterScenarios keeps the files whose base name, without extension,
// matches the glob pattern. An empty pattern keeps everything.
func filterScenarios(paths []string, pattern string) ([]string, error) {
	if pattern == "" {
		return paths, nil
	}
	var kept []string
	for _, p := range paths {
		base := filepath.Base(p)
		name := strings.TrimSuffix(base, filepath.Ext(base))
		matched, err := filepath.Match(pattern, name)
		if err != nil {
			return nil, err
		}
		if matched {
			kept = append(kept, p)
		}
	}
	return kept, nil
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(dir, scenarioName string) string {
	return filepath.Join(dir, scenarioName+".golden")
}

// goldenCheck compares each scenario snapshot with its golden file, or
// rewrites the file when update is set. Scenarios without a golden file
// pass on their assertions alone.
func goldenCheck(dir string, update bool) harness.SuiteCheck {
	return func(scenario *harness.Scenario, result *harness.Result) []string {
		data, err := harness.MarshalSnapshot(scenario.Name, result)
		if err != nil {
			return []string{fmt.Sprintf("failed to marshal snapshot: %v", err)}
		}
		path := goldenFilePath(dir, scenario.Name)

		if update {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return []string{fmt.Sprintf("failed to create golden directory: %v", err)}
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return []string{fmt.Sprintf("failed to write golden file: %v", err)}
			}
			return nil
		}

		golden, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return []string{fmt.Sprintf("failed to read golden file: %v", err)}
		}
		if !bytes.Equal(bytes.TrimSpace(golden), data) {
			return []string{fmt.Sprintf("snapshot does not match %s (run with --update to regenerate)", path)}
		}
		return nil
	}
}

// outputTestJSON outputs the suite result as JSON.
func outputTestJSON(f *OutputFormatter, result *harness.SuiteResult) error {
	status := "ok"
	if result.Failed > 0 {
		status = "error"
	}

	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(CLIResponse{
		Status: status,
		Data:   result,
	})
}

// outputTestText outputs the suite result as human-readable text.
func outputTestText(f *OutputFormatter, result *harness.SuiteResult, updated bool) {
	w := f.Writer
	if result.TotalScenarios == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}

	for _, s := range result.Scenarios {
		name := s.Scenario
		if name == "" {
			name = filepath.Base(s.ScenarioPath)
		}
		if !s.Pass {
			fmt.Fprintf(w, "✗ %s\n", name)
			for _, e := range s.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
			continue
		}
		if updated {
			fmt.Fprintf(w, "✓ %s (golden updated)\n", name)
		} else {
			fmt.Fprintf(w, "✓ %s\n", name)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.TotalScenarios)
}
