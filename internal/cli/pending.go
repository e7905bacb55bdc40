package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/metasync/internal/harness"
	"github.com/roach88/metasync/internal/model"
)

// PendingResult lists stored pending exports.
type PendingResult struct {
	Count          int              `json:"count"`
	PendingExports []map[string]any `json:"pending_exports"`
}

// NewPendingCommand creates the pending command.
func NewPendingCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pending [object...]",
		Short: "List pending exports",
		Long: `List the pending exports in the database, oldest first, with each
attribute change, its status and export attempt count.

With arguments only the pending exports of the named objects are shown.

Examples:
  metasync pending --db ./state.db --config ./config
  metasync pending --db ./state.db --config ./config alice --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPending(opts, args, cmd)
		},
	}

	addStoreFlags(cmd, opts)

	return cmd
}

func runPending(opts *SyncOptions, objects []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	s, err := openSession(opts, formatter)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := commandContext(cmd)
	var exports []*model.PendingExport
	if len(objects) == 0 {
		exports, err = s.store.ListPendingExports(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to list pending exports", err)
		}
	} else {
		for _, name := range objects {
			pe, err := s.store.GetPendingExportByTargetObjectID(ctx, harness.ObjectID(name))
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to read pending export for %s", name), err)
			}
			if pe != nil {
				exports = append(exports, pe)
			}
		}
	}

	names := make(harness.Names, len(objects))
	for _, name := range objects {
		names[harness.ObjectID(name)] = name
	}

	result := PendingResult{
		Count:          len(exports),
		PendingExports: make([]map[string]any, 0, len(exports)),
	}
	for _, pe := range exports {
		result.PendingExports = append(result.PendingExports, harness.PendingExportView(pe, s.config.Schema, names))
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	outputPendingText(formatter, result)
	return nil
}

func outputPendingText(f *OutputFormatter, r PendingResult) {
	w := f.Writer
	if r.Count == 0 {
		fmt.Fprintln(w, "No pending exports.")
		return
	}

	for _, view := range r.PendingExports {
		changes, _ := view["changes"].([]any)
		fmt.Fprintf(w, "%s  %s  %s  %d change(s)\n", view["object"], view["change_type"], view["status"], len(changes))
		for _, c := range changes {
			change, ok := c.(map[string]any)
			if !ok {
				continue
			}
			fmt.Fprintf(w, "  %s  %s  %s  attempts=%d", change["attribute"], change["change_type"], change["status"], change["attempts"])
			if v, ok := change["value"]; ok {
				fmt.Fprintf(w, "  value=%q", v)
			}
			fmt.Fprintln(w)
		}
	}
	fmt.Fprintf(w, "%d pending export(s)\n", r.Count)
}
