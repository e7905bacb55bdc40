package engine

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/roach88/metasync/internal/drift"
	"github.com/roach88/metasync/internal/metrics"
	"github.com/roach88/metasync/internal/model"
	"github.com/roach88/metasync/internal/reconcile"
)

// Store is the Pending Export persistence the engine drives.
// Implemented by *store.Store.
type Store interface {
	reconcile.Store
	drift.Store
	ListPendingExports(ctx context.Context) ([]*model.PendingExport, error)
}

// DefaultWorkers is the default number of import shards.
const DefaultWorkers = 4

// Engine runs import and export passes against one store, schema, and rule set.
//
// Thread-safety model:
//   - Import(): may be called concurrently only for disjoint object sets;
//     overlapping passes would race on the same Pending Export
//   - RecordExportAttempt(), ExportAll(): same restriction
//
// INVARIANTS:
//   - rules order NEVER changes after construction (drift is grouped in rule order)
//   - exportRules is read-only after New
type Engine struct {
	store  Store
	schema *model.Schema
	rules  []model.SyncRule

	// exportRules indexes enforced-capable export rules by target.
	exportRules map[targetKey][]model.SyncRule

	reconciler *reconcile.Reconciler
	detector   *drift.Detector

	workers    int
	maxRetries int
	clock      model.Clock
	ids        model.IDGenerator
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type targetKey struct {
	connectedSystemID int
	objectTypeID      int
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithWorkers sets the number of import shards.
//
// Default: 4 (DefaultWorkers). Values below 1 are ignored.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n >= 1 {
			e.workers = n
		}
	}
}

// WithMaxRetries sets the reconciliation retry limit.
//
// Default: reconcile.DefaultMaxRetries (5).
func WithMaxRetries(n int) EngineOption {
	return func(e *Engine) {
		e.maxRetries = n
	}
}

// WithClock sets the clock for creation and export timestamps.
func WithClock(c model.Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator sets the id source for new Pending Exports and changes.
func WithIDGenerator(g model.IDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMetrics sets the metrics sink. Default: metrics.Default().
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an Engine over s for the given schema and sync rules.
//
// The rules slice is copied; its order is the order in which drift is
// grouped into corrective changes.
func New(s Store, schema *model.Schema, rules []model.SyncRule, opts ...EngineOption) *Engine {
	rulesCopy := make([]model.SyncRule, len(rules))
	copy(rulesCopy, rules)

	e := &Engine{
		store:       s,
		schema:      schema,
		rules:       rulesCopy,
		exportRules: make(map[targetKey][]model.SyncRule),
		workers:     DefaultWorkers,
		maxRetries:  reconcile.DefaultMaxRetries,
		clock:       model.SystemClock{},
		ids:         model.UUIDv7Generator{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.Default()
	}

	for _, r := range e.rules {
		if r.Direction != model.DirectionExport {
			continue
		}
		k := targetKey{connectedSystemID: r.ConnectedSystemID, objectTypeID: r.ConnectedSystemObjectTypeID}
		e.exportRules[k] = append(e.exportRules[k], r)
	}

	e.reconciler = reconcile.New(s, schema,
		reconcile.WithMaxRetries(e.maxRetries),
		reconcile.WithLogger(e.logger),
	)
	e.detector = drift.NewDetector(s, schema,
		drift.WithLogger(e.logger),
		drift.WithClock(e.clock),
		drift.WithIDGenerator(e.ids),
	)
	return e
}

// Workers returns the number of import shards.
func (e *Engine) Workers() int {
	return e.workers
}

// connectedSystemName labels metrics; falls back to the numeric id.
func (e *Engine) connectedSystemName(id int) string {
	for _, cs := range e.schema.ConnectedSystems {
		if cs.ID == id {
			return cs.Name
		}
	}
	return strconv.Itoa(id)
}
