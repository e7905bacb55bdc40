// Package engine runs import and export passes over Pending Exports.
//
// An import pass takes the objects a connector just read and, for each one,
// reconciles its Pending Export and then checks it for drift. Objects are
// sharded by connected system object id across a fixed set of workers:
//
//	dispatcher ──► shard queue 0 ──► worker 0: reconcile, drift, reconcile, drift, ...
//	           ──► shard queue 1 ──► worker 1: ...
//	           ──► ...
//
// Every object with a given id lands on the same shard and is processed in
// submission order, so a Pending Export is never read-modify-written by two
// workers at once.
//
// Cancellation stops work from starting; an object already being processed
// runs to completion so its Pending Export is never left half-updated.
//
// The import-contribution lookup is built once per pass and shared read-only
// by all workers.
//
// An export pass stands in for the connector's export executor: it marks
// every change that needs exporting as ExportedPendingConfirmation and
// increments its attempt counter.
package engine
