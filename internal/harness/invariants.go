package harness

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/metasync/internal/model"
)

// CheckInvariants inspects every stored Pending Export and reports each
// broken store invariant as a message. It is run after every scenario step.
func CheckInvariants(exports []*model.PendingExport, maxRetries int, names Names) []string {
	var problems []string
	targets := make(map[uuid.UUID]int)

	for _, pe := range exports {
		obj := names.Name(pe.ConnectedSystemObjectID)
		targets[pe.ConnectedSystemObjectID]++

		if len(pe.AttributeChanges) == 0 {
			problems = append(problems, fmt.Sprintf("%s: pending export %s has no attribute changes", obj, pe.ID))
			continue
		}

		// Pending and Executing are set by staging and export executors;
		// every other status must agree with the changes.
		if pe.Status != model.PendingExportPending && pe.Status != model.PendingExportExecuting {
			want := pe.Clone().RecomputeStatus()
			if want != pe.Status {
				problems = append(problems, fmt.Sprintf("%s: status %s does not match changes (want %s)", obj, pe.Status, want))
			}
		}

		for _, c := range pe.AttributeChanges {
			retryable := c.Status == model.AttributeChangePending || c.Status == model.AttributeChangeExportedNotConfirmed
			if retryable && c.ExportAttemptCount >= maxRetries {
				problems = append(problems, fmt.Sprintf("%s: attribute %d is %s after %d attempts (limit %d)",
					obj, c.AttributeID, c.Status, c.ExportAttemptCount, maxRetries))
			}
		}
	}

	for id, n := range targets {
		if n > 1 {
			problems = append(problems, fmt.Sprintf("%s: %d pending exports for one object", names.Name(id), n))
		}
	}
	return problems
}
