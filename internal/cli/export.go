package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/metasync/internal/engine"
	"github.com/roach88/metasync/internal/harness"
)

// ExportResult is the output of an export pass.
type ExportResult struct {
	PendingExports int      `json:"pending_exports"`
	Changes        int      `json:"changes"`
	Missing        []string `json:"missing,omitempty"` // named objects without a pending export
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export [object...]",
		Short: "Record an export attempt for pending exports",
		Long: `Record an export attempt for pending exports, as a connector would after
writing their changes to the target system. Each change awaiting export is
marked ExportedPendingConfirmation and its attempt count incremented; the
next import confirms or retries it.

With no arguments every pending export is attempted. Objects are named by
id or by the name used in the object snapshot.

Exit codes:
  0 - Export recorded
  1 - A named object has no pending export
  2 - Command error

Examples:
  metasync export --db ./state.db --config ./config
  metasync export --db ./state.db --config ./config alice bob`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args, cmd)
		},
	}

	addStoreFlags(cmd, opts)

	return cmd
}

func runExport(opts *SyncOptions, objects []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	s, err := openSession(opts, formatter)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := commandContext(cmd)
	var result ExportResult

	if len(objects) == 0 {
		summary, err := s.engine.ExportAll(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeExport, "export failed", err)
		}
		result.PendingExports = summary.PendingExports
		result.Changes = summary.Changes
	} else {
		for _, name := range objects {
			_, n, err := s.engine.RecordExportAttempt(ctx, harness.ObjectID(name))
			if errors.Is(err, engine.ErrNoPendingExport) {
				result.Missing = append(result.Missing, name)
				continue
			}
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeExport, fmt.Sprintf("export %s failed", name), err)
			}
			if n > 0 {
				result.PendingExports++
				result.Changes += n
			}
		}
	}

	if len(result.Missing) > 0 {
		if formatter.Format == "json" {
			_ = formatter.Error(ErrCodeExport, "no pending export", result)
		} else {
			outputExportText(formatter, result)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d object(s) have no pending export", len(result.Missing)))
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	outputExportText(formatter, result)
	return nil
}

func outputExportText(f *OutputFormatter, r ExportResult) {
	fmt.Fprintf(f.Writer, "Exported %d change(s) on %d pending export(s)\n", r.Changes, r.PendingExports)
	for _, name := range r.Missing {
		fmt.Fprintf(f.Writer, "  no pending export: %s\n", name)
	}
}
