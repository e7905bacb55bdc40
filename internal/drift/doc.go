// Package drift detects divergence between what enforced export rules dictate
// and what an import actually observed on a connected system object, and
// stages corrective Pending Exports for it.
//
// Detection runs on every import of every joined object, so the common case
// (no enforced rules for this system/object type) exits before any work.
//
// Staging folds corrective changes into the single open Pending Export for
// the object rather than creating one per rule:
//   - no change for the attribute yet: append an Update change
//   - change already carries an equal value: leave it
//   - change Pending or ExportedNotConfirmed: replace the value, reset to Pending
//   - change ExportedPendingConfirmation or Failed: leave it
//
// Delete-type and Executing Pending Exports are never folded into.
package drift
