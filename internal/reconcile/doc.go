// Package reconcile confirms, retries, or fails previously exported attribute
// changes once a later import shows what the connected system actually holds.
//
// Only Pending Exports whose aggregate status is Exported are reconciled.
// Within one, only changes in ExportedPendingConfirmation are examined:
//
//	Add, Update   confirmed iff some imported value equals the intended value
//	Remove        confirmed iff no imported value equals the intended value
//	RemoveAll     confirmed iff the attribute has no values
//
// Add and Update with no intended value clear the attribute and confirm like
// RemoveAll. Confirmed changes are dropped from the Pending Export; the rest
// become ExportedNotConfirmed, or Failed once the attempt counter reaches the
// retry limit. A Pending Export left with no changes is deleted.
//
// The reconciler never increments attempt counters; export execution does.
package reconcile
