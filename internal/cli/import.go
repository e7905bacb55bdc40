package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/metasync/internal/engine"
	"github.com/roach88/metasync/internal/harness"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	SyncOptions
	Objects string // YAML object snapshot
}

// ImportResult is the output of an import pass.
type ImportResult struct {
	Objects           int      `json:"objects"`
	Processed         int      `json:"processed"`
	Skipped           int      `json:"skipped"`
	Confirmed         int      `json:"confirmed"`
	Retried           int      `json:"retried"`
	Failed            int      `json:"failed"`
	Deleted           int      `json:"deleted"`
	Transitioned      int      `json:"transitioned"`
	DriftedObjects    int      `json:"drifted_objects"`
	DriftedAttributes int      `json:"drifted_attributes"`
	ChangesStaged     int      `json:"changes_staged"`
	ExportsCreated    int      `json:"exports_created"`
	Errors            []string `json:"errors,omitempty"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{SyncOptions: SyncOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Run an import pass over an object snapshot",
		Long: `Run one import pass over the connected system objects in a YAML
snapshot. Each object's pending export is reconciled against the imported
values, then drift on enforced export rules is staged as corrective
pending exports.

Examples:
  metasync import --db ./state.db --config ./config --objects ./ad-users.yaml
  metasync import --db ./state.db --config ./config --objects ./ad-users.yaml --workers 8`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, cmd)
		},
	}

	addStoreFlags(cmd, &opts.SyncOptions)
	addEngineFlags(cmd, &opts.SyncOptions)
	cmd.Flags().StringVar(&opts.Objects, "objects", "", "YAML object snapshot to import (required)")
	_ = cmd.MarkFlagRequired("objects")

	return cmd
}

func runImport(opts *ImportOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	s, err := openSession(&opts.SyncOptions, formatter)
	if err != nil {
		return err
	}
	defer s.Close()

	objs, err := harness.LoadObjects(opts.Objects, s.config.Schema)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeObjects, "failed to load objects", err)
	}
	formatter.VerboseLog("Importing %d object(s) on %d worker(s)", len(objs), s.engine.Workers())

	// Objects already started finish before the pass returns.
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := s.engine.Import(ctx, objs)
	result := newImportResult(summary)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return formatter.Fail(ExitFailure, ErrCodeImport,
				fmt.Sprintf("import interrupted after %d of %d object(s)", summary.Processed, summary.Objects), err)
		}
		return formatter.Fail(ExitCommandError, ErrCodeImport, "import failed", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return outputImportText(formatter, result)
}

func newImportResult(s engine.ImportSummary) ImportResult {
	r := ImportResult{
		Objects:           s.Objects,
		Processed:         s.Processed,
		Skipped:           s.Skipped,
		Confirmed:         s.Confirmed,
		Retried:           s.Retried,
		Failed:            s.Failed,
		Deleted:           s.Deleted,
		Transitioned:      s.Transitioned,
		DriftedObjects:    s.DriftedObjects,
		DriftedAttributes: s.DriftedAttributes,
		ChangesStaged:     s.ChangesStaged,
		ExportsCreated:    s.ExportsCreated,
	}
	for _, res := range s.Results {
		if res.Err != nil {
			r.Errors = append(r.Errors, res.Err.Error())
		}
	}
	return r
}

func outputImportText(f *OutputFormatter, r ImportResult) error {
	w := f.Writer
	fmt.Fprintf(w, "Imported %d object(s)\n", r.Processed)
	fmt.Fprintf(w, "  reconciled: %d confirmed, %d retried, %d failed\n", r.Confirmed, r.Retried, r.Failed)
	fmt.Fprintf(w, "  pending exports deleted: %d\n", r.Deleted)
	fmt.Fprintf(w, "  drift: %d attribute(s) on %d object(s)\n", r.DriftedAttributes, r.DriftedObjects)
	fmt.Fprintf(w, "  staged: %d change(s), %d new pending export(s)\n", r.ChangesStaged, r.ExportsCreated)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  error: %s\n", e)
	}
	return nil
}
