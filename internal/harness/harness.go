package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/metasync/internal/compiler"
	"github.com/roach88/metasync/internal/engine"
	"github.com/roach88/metasync/internal/metrics"
	"github.com/roach88/metasync/internal/model"
	"github.com/roach88/metasync/internal/reconcile"
	"github.com/roach88/metasync/internal/store"
	"github.com/roach88/metasync/internal/testutil"
)

// idPrefix marks ids generated during scenario runs.
const idPrefix = 0x5c

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and id sequence.
type Harness struct {
	store      *store.Store
	engine     *engine.Engine
	config     *compiler.Config
	maxRetries int
	names      Names
	clock      model.Clock
	ids        model.IDGenerator
	logger     *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. The import
// pass runs on a single worker so that clock ticks and ids are handed out in
// object order and golden snapshots are reproducible.
//
// Execution flow:
// 1. Load and compile the CUE configuration
// 2. Create fresh in-memory database and engine
// 3. Execute steps, checking step expectations and store invariants
// 4. Capture final state and evaluate assertions
//
// A returned error means the scenario could not be executed; failed
// expectations are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	cfg, err := compiler.LoadDir(scenario.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	maxRetries := reconcile.DefaultMaxRetries
	if scenario.MaxRetries > 0 {
		maxRetries = scenario.MaxRetries
	}

	// Seeded exports share the engine's clock and ids.
	clock := testutil.NewDeterministicClock()
	ids := testutil.NewSequentialIDs(idPrefix)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	eng := engine.New(st, cfg.Schema, cfg.Rules,
		engine.WithWorkers(1),
		engine.WithMaxRetries(maxRetries),
		engine.WithClock(clock),
		engine.WithIDGenerator(ids),
		engine.WithLogger(logger),
		engine.WithMetrics(metrics.New(prometheus.NewRegistry())),
	)

	h := &Harness{
		store:      st,
		engine:     eng,
		config:     cfg,
		maxRetries: maxRetries,
		names:      make(Names),
		clock:      clock,
		ids:        ids,
		logger:     logger,
	}

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Steps {
		var summary map[string]int
		switch step.Kind() {
		case StepSeed:
			summary, err = h.executeSeed(ctx, step.Seed)
		case StepExport:
			summary, err = h.executeExport(ctx, i, step.Export, result)
		default:
			summary, err = h.executeImport(ctx, step.Import)
		}
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Kind(), err)
		}
		result.AddStepTrace(i, step.Kind(), summary)
		checkExpect(i, step, summary, result)

		exports, err := st.ListPendingExports(ctx)
		if err != nil {
			return nil, fmt.Errorf("step %d: list pending exports: %w", i, err)
		}
		for _, problem := range CheckInvariants(exports, maxRetries, h.names) {
			result.AddError(fmt.Sprintf("step %d: invariant violated: %s", i, problem))
		}
	}

	exports, err := st.ListPendingExports(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending exports: %w", err)
	}
	for _, pe := range exports {
		result.State = append(result.State, PendingExportView(pe, cfg.Schema, h.names))
	}

	actx := &AssertionContext{
		Ctx:    ctx,
		Store:  st,
		Schema: cfg.Schema,
		Names:  h.names,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeImport runs one import pass over the step's objects.
func (h *Harness) executeImport(ctx context.Context, specs []ObjectSpec) (map[string]int, error) {
	objs, err := BuildObjects(specs, h.config.Schema)
	if err != nil {
		return nil, err
	}
	for i, obj := range objs {
		h.names[obj.CSO.ID] = specs[i].ID
		if obj.MVO != nil {
			h.names[obj.MVO.ID] = specs[i].ID
			if specs[i].Metaverse.ID != "" {
				h.names[obj.MVO.ID] = specs[i].Metaverse.ID
			}
		}
	}

	summary, err := h.engine.Import(ctx, objs)
	if err != nil {
		return nil, err
	}
	for _, r := range summary.Results {
		if r.Err != nil {
			return nil, fmt.Errorf("object %s: %w", h.names.Name(r.CSOID), r.Err)
		}
	}

	h.logger.Info("import step completed", "objects", len(objs), "staged", summary.ChangesStaged)
	return importSummaryMap(summary), nil
}

// executeExport records export attempts for the named objects, or for every
// Pending Export when none are named. Naming an object without a Pending
// Export is a scenario failure, not an execution error.
func (h *Harness) executeExport(ctx context.Context, step int, export *ExportStep, result *Result) (map[string]int, error) {
	if len(export.Objects) == 0 {
		summary, err := h.engine.ExportAll(ctx)
		if err != nil {
			return nil, err
		}
		return exportSummaryMap(summary), nil
	}

	var summary engine.ExportSummary
	for _, name := range export.Objects {
		_, n, err := h.engine.RecordExportAttempt(ctx, ObjectID(name))
		if errors.Is(err, engine.ErrNoPendingExport) {
			result.AddError(fmt.Sprintf("step %d: export %s: no pending export", step, name))
			continue
		}
		if err != nil {
			return nil, err
		}
		if n > 0 {
			summary.PendingExports++
			summary.Changes += n
		}
	}
	return exportSummaryMap(summary), nil
}

// executeSeed stores the seeded Pending Export. Seeding an object that
// already has one is an execution error.
func (h *Harness) executeSeed(ctx context.Context, seed *SeedStep) (map[string]int, error) {
	pe, err := buildSeed(seed, h.config.Schema, h.ids, h.clock)
	if err != nil {
		return nil, err
	}
	h.names[pe.ConnectedSystemObjectID] = seed.Object
	if pe.SourceMetaverseObjectID != nil {
		h.names[*pe.SourceMetaverseObjectID] = seed.Source
	}

	if err := h.store.CreatePendingExport(ctx, pe); err != nil {
		return nil, fmt.Errorf("seed %s: %w", seed.Object, err)
	}
	return map[string]int{"changes": len(pe.AttributeChanges)}, nil
}

// checkExpect compares the counts a step declared against its summary.
func checkExpect(step int, s Step, summary map[string]int, result *Result) {
	keys := make([]string, 0, len(s.Expect))
	for k := range s.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if got := summary[k]; got != s.Expect[k] {
			result.AddError(fmt.Sprintf("step %d (%s): expected %s = %d, got %d", step, s.Kind(), k, s.Expect[k], got))
		}
	}
}
