package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/metasync/internal/drift"
	"github.com/roach88/metasync/internal/model"
	"github.com/roach88/metasync/internal/reconcile"
)

// ImportedObject is one object as a connector just read it, with its joined
// metaverse object if any.
type ImportedObject struct {
	CSO *model.ConnectedSystemObject
	MVO *model.MetaverseObject
}

// ObjectResult is what one import did to one object.
type ObjectResult struct {
	CSOID     uuid.UUID
	Started   bool // false if cancellation or an earlier failure stopped it first
	Reconcile reconcile.Result
	Drift     drift.Result
	Err       error
}

// ImportSummary totals an import pass. Results are in submission order.
type ImportSummary struct {
	Objects   int
	Processed int
	Skipped   int

	Confirmed    int
	Retried      int
	Failed       int
	Deleted      int
	Transitioned int

	DriftedObjects    int
	DriftedAttributes int
	ChangesStaged     int
	ExportsCreated    int

	Results []ObjectResult
}

// Import runs one import pass over objs: for each object, reconcile its
// Pending Export, then detect and stage drift.
//
// Objects are sharded by id; within a shard they run in submission order.
// The first store failure stops all shards from starting further objects
// and is returned as an *ObjectError. Cancelling ctx does the same and
// returns ctx.Err(). In both cases the summary covers the objects that ran.
func (e *Engine) Import(ctx context.Context, objs []ImportedObject) (ImportSummary, error) {
	start := time.Now()
	defer func() { e.metrics.ObserveImport(time.Since(start).Seconds()) }()

	// Built once per pass, read-only across workers.
	contributions := drift.BuildImportContributions(e.rules)

	results := make([]ObjectResult, len(objs))
	for i, obj := range objs {
		if obj.CSO != nil {
			results[i].CSOID = obj.CSO.ID
		}
	}

	shards := e.workers
	if len(objs) < shards {
		shards = max(len(objs), 1)
	}
	queues := make([]*shardQueue, shards)
	for i := range queues {
		queues[i] = newShardQueue()
	}

	e.logger.Info("import pass starting", "objects", len(objs), "shards", shards)

	g, gctx := errgroup.WithContext(ctx)
	for _, q := range queues {
		q := q
		g.Go(func() error {
			return e.runShard(gctx, q, contributions, results)
		})
	}

	// Dispatch. Stop submitting as soon as the pass is cancelled or failed.
	for i, obj := range objs {
		if gctx.Err() != nil {
			break
		}
		if obj.CSO == nil {
			results[i].Err = fmt.Errorf("import: object %d has no connected system object", i)
			continue
		}
		queues[shardFor(obj.CSO, shards)].Enqueue(workItem{index: i, obj: obj})
	}
	for _, q := range queues {
		q.Close()
	}

	err := g.Wait()
	summary := summarize(results)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	e.logger.Info("import pass finished",
		"objects", summary.Objects,
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"confirmed", summary.Confirmed,
		"retried", summary.Retried,
		"failed", summary.Failed,
		"deleted", summary.Deleted,
		"drifted_objects", summary.DriftedObjects,
		"changes_staged", summary.ChangesStaged,
	)
	return summary, err
}

// runShard drains one shard queue. It returns when the queue is drained, the
// pass is cancelled, or an object fails.
func (e *Engine) runShard(ctx context.Context, q *shardQueue, contributions drift.ImportContributions, results []ObjectResult) error {
	for {
		if ctx.Err() != nil {
			left := q.Abandon()
			if len(left) > 0 {
				e.logger.Info("import shard stopping; objects not started", "count", len(left))
			}
			return nil
		}

		it, ok := q.TryDequeue()
		if ok {
			// Let a started object finish even if the pass is cancelled meanwhile.
			objCtx := context.WithoutCancel(ctx)
			res := &results[it.index]
			res.Started = true
			if err := e.processObject(objCtx, it.obj, contributions, res); err != nil {
				res.Err = err
				e.logger.Error("import object failed",
					"cso_id", it.obj.CSO.ID,
					"error", err,
				)
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			// Loop back to abandon what is left.
		case <-q.Wait():
			if q.Drained() {
				return nil
			}
		}
	}
}

// processObject reconciles then checks drift for one object.
// The two steps run sequentially so staging sees the reconciled state.
func (e *Engine) processObject(ctx context.Context, obj ImportedObject, contributions drift.ImportContributions, res *ObjectResult) error {
	cso := obj.CSO
	e.metrics.ObjectImported()

	rr, err := e.reconciler.Reconcile(ctx, cso)
	if err != nil {
		return newObjectError(StageReconcile, cso.ID, err)
	}
	res.Reconcile = rr
	e.recordReconcile(rr)

	if obj.MVO == nil || !cso.IsJoined() {
		return nil
	}
	rules := e.exportRules[targetKey{connectedSystemID: cso.ConnectedSystemID, objectTypeID: cso.TypeID}]
	if len(rules) == 0 {
		return nil
	}

	dr, err := e.detector.Evaluate(ctx, drift.Input{
		CSO:           cso,
		MVO:           obj.MVO,
		ExportRules:   rules,
		Contributions: contributions,
	})
	res.Drift = dr
	if err != nil {
		return newObjectError(StageDrift, cso.ID, err)
	}
	if dr.HasDrift() {
		e.metrics.DriftDetected(e.connectedSystemName(cso.ConnectedSystemID), len(dr.Drift))
	}
	if dr.Staged > 0 {
		e.metrics.ChangesStaged(dr.Staged)
	}
	return nil
}

func (e *Engine) recordReconcile(rr reconcile.Result) {
	for _, c := range rr.Changes {
		e.metrics.ChangeOutcome(c.Outcome.String())
	}
	if rr.Deleted {
		e.metrics.ExportDeleted()
	}
	if rr.TransitionedToUpdate {
		e.metrics.CreateTransitioned()
	}
}

func summarize(results []ObjectResult) ImportSummary {
	s := ImportSummary{Objects: len(results), Results: results}
	for _, r := range results {
		if !r.Started {
			s.Skipped++
			continue
		}
		s.Processed++
		s.Confirmed += r.Reconcile.Count(reconcile.OutcomeConfirmed)
		s.Retried += r.Reconcile.Count(reconcile.OutcomeRetry)
		s.Failed += r.Reconcile.Count(reconcile.OutcomeFailed)
		if r.Reconcile.Deleted {
			s.Deleted++
		}
		if r.Reconcile.TransitionedToUpdate {
			s.Transitioned++
		}
		if r.Drift.HasDrift() {
			s.DriftedObjects++
			s.DriftedAttributes += len(r.Drift.Drift)
		}
		s.ChangesStaged += r.Drift.Staged
		if r.Drift.Created {
			s.ExportsCreated++
		}
	}
	return s
}
