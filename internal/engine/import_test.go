package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/metasync/internal/model"
)

func TestImport_StagesDriftPerObject(t *testing.T) {
	s := openTestStore(t)
	e := newTestEngine(t, s, WithWorkers(3))
	ctx := context.Background()

	objs := []ImportedObject{
		person(1, "Engineering", "Sales"),
		person(2, "Sales", "Sales"),
		person(3, "Finance", "Marketing"),
		person(4, "Ops", "Ops"),
	}

	summary, err := e.Import(ctx, objs)
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Objects)
	assert.Equal(t, 4, summary.Processed)
	assert.Zero(t, summary.Skipped)
	assert.Equal(t, 2, summary.DriftedObjects)
	assert.Equal(t, 2, summary.ExportsCreated)
	assert.Equal(t, 2, summary.ChangesStaged)

	require.Len(t, summary.Results, 4)
	for i, r := range summary.Results {
		assert.Equal(t, objs[i].CSO.ID, r.CSOID, "results follow submission order")
		assert.True(t, r.Started)
	}

	list, err := s.ListPendingExports(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestImport_ExportThenConfirm(t *testing.T) {
	s := openTestStore(t)
	e := newTestEngine(t, s)
	ctx := context.Background()

	drifted := person(1, "Engineering", "Sales")
	_, err := e.Import(ctx, []ImportedObject{drifted})
	require.NoError(t, err)

	_, n, err := e.RecordExportAttempt(ctx, drifted.CSO.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The connected system applied the change.
	fixed := person(1, "Engineering", "Engineering")
	summary, err := e.Import(ctx, []ImportedObject{fixed})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Confirmed)
	assert.Equal(t, 1, summary.Deleted)
	assert.Zero(t, summary.DriftedObjects)

	pe, err := s.GetPendingExportByTargetObjectID(ctx, fixed.CSO.ID)
	require.NoError(t, err)
	assert.Nil(t, pe)
}

func TestImport_UnconfirmedExportIsRetriedNotDuplicated(t *testing.T) {
	s := openTestStore(t)
	e := newTestEngine(t, s)
	ctx := context.Background()

	obj := person(1, "Engineering", "Sales")
	_, err := e.Import(ctx, []ImportedObject{obj})
	require.NoError(t, err)
	_, _, err = e.RecordExportAttempt(ctx, obj.CSO.ID)
	require.NoError(t, err)

	// The connected system silently kept its value.
	summary, err := e.Import(ctx, []ImportedObject{obj})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Retried)
	assert.Equal(t, 1, summary.DriftedObjects)
	assert.Zero(t, summary.ChangesStaged, "drift folds onto the change already being retried")

	n, err := s.CountPendingExports(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pe, err := s.GetPendingExportByTargetObjectID(ctx, obj.CSO.ID)
	require.NoError(t, err)
	require.Len(t, pe.AttributeChanges, 1)
	assert.Equal(t, model.AttributeChangeExportedNotConfirmed, pe.AttributeChanges[0].Status)
	assert.Equal(t, 1, pe.AttributeChanges[0].ExportAttemptCount)
	assert.Equal(t, model.PendingExportExportNotImported, pe.Status)
}

func TestImport_RetryLimit(t *testing.T) {
	s := openTestStore(t)
	e := newTestEngine(t, s, WithMaxRetries(2))
	ctx := context.Background()

	obj := person(1, "Engineering", "Sales")
	_, err := e.Import(ctx, []ImportedObject{obj})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, _, err = e.RecordExportAttempt(ctx, obj.CSO.ID)
		require.NoError(t, err)
		_, err = e.Import(ctx, []ImportedObject{obj})
		require.NoError(t, err)
	}

	pe, err := s.GetPendingExportByTargetObjectID(ctx, obj.CSO.ID)
	require.NoError(t, err)
	require.Len(t, pe.AttributeChanges, 1)
	assert.Equal(t, model.AttributeChangeFailed, pe.AttributeChanges[0].Status)
	assert.Equal(t, model.PendingExportFailed, pe.Status)

	// A failed change is not re-attempted.
	_, n, err := e.RecordExportAttempt(ctx, obj.CSO.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestImport_SameObjectTwiceInOnePass(t *testing.T) {
	s := openTestStore(t)
	e := newTestEngine(t, s, WithWorkers(4))
	ctx := context.Background()

	first := person(1, "Engineering", "Sales")
	second := person(1, "Engineering", "Marketing")

	summary, err := e.Import(ctx, []ImportedObject{first, second})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.DriftedObjects)
	assert.Equal(t, 1, summary.ExportsCreated, "same object is serialised on one shard")

	n, err := s.CountPendingExports(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestImport_UnjoinedObjectOnlyReconciles(t *testing.T) {
	s := openTestStore(t)
	e := newTestEngine(t, s)

	obj := person(1, "Engineering", "Sales")
	obj.CSO.MetaverseObjectID = nil
	obj.MVO = nil

	summary, err := e.Import(context.Background(), []ImportedObject{obj})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Zero(t, summary.DriftedObjects)
}

func TestImport_Empty(t *testing.T) {
	e := newTestEngine(t, openTestStore(t))

	summary, err := e.Import(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, summary.Objects)
}

func TestImport_CancelledBeforeStart(t *testing.T) {
	s := openTestStore(t)
	e := newTestEngine(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := e.Import(ctx, []ImportedObject{
		person(1, "Engineering", "Sales"),
		person(2, "Engineering", "Sales"),
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, summary.Skipped)
	assert.Zero(t, summary.Processed)

	n, err := s.CountPendingExports(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestImport_StoreFailureStopsPass(t *testing.T) {
	s := openTestStore(t)
	bad := person(1, "Engineering", "Sales")
	fs := &failingStore{Store: s, failFor: bad.CSO.ID}
	e := newTestEngine(t, fs, WithWorkers(1))

	summary, err := e.Import(context.Background(), []ImportedObject{
		bad,
		person(2, "Engineering", "Sales"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errInjected)
	assert.True(t, IsObjectError(err, StageReconcile))

	require.Len(t, summary.Results, 2)
	assert.ErrorIs(t, summary.Results[0].Err, errInjected)
	assert.False(t, summary.Results[1].Started, "later objects on the shard are not started")
}

func TestImport_NilCSOIsReported(t *testing.T) {
	e := newTestEngine(t, openTestStore(t))

	summary, err := e.Import(context.Background(), []ImportedObject{{}, person(1, "A", "A")})
	require.NoError(t, err)
	assert.Error(t, summary.Results[0].Err)
	assert.Equal(t, 1, summary.Processed)
}

func TestNew_Defaults(t *testing.T) {
	e := newTestEngine(t, openTestStore(t))
	assert.Equal(t, DefaultWorkers, e.Workers())
	assert.Equal(t, "AD", e.connectedSystemName(csAD))
	assert.Equal(t, "99", e.connectedSystemName(99))
	assert.Len(t, e.exportRules[targetKey{connectedSystemID: csAD, objectTypeID: otUser}], 1)
}
