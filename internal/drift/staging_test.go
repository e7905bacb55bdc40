package drift

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/metasync/internal/model"
)

func TestEvaluate_TwoRulesFoldIntoOnePendingExport(t *testing.T) {
	d, s := newTestDetector(t)
	ctx := context.Background()

	mvo := testMVO(
		av(mvDepartment, model.Text("Engineering")),
		av(mvDisplayName, model.Text("Jane Doe")),
	)
	cso := testCSO(mvo,
		av(adDepartment, model.Text("Sales")),
		av(adDisplayName, model.Text("Jane")),
	)
	rules := []model.SyncRule{
		exportRule(7, true, directFlow(70, mvDepartment, adDepartment)),
		exportRule(8, true, directFlow(80, mvDisplayName, adDisplayName)),
	}

	res, err := d.Evaluate(ctx, Input{CSO: cso, MVO: mvo, ExportRules: rules})
	require.NoError(t, err)
	assert.Len(t, res.Drift, 2)
	assert.Equal(t, 2, res.Staged)

	n, err := s.CountPendingExports(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "at most one pending export per object")

	pe, err := s.GetPendingExportByTargetObjectID(ctx, cso.ID)
	require.NoError(t, err)
	require.Len(t, pe.AttributeChanges, 2)
	assert.Equal(t, adDepartment, pe.AttributeChanges[0].AttributeID, "rule order is preserved")
	assert.Equal(t, adDisplayName, pe.AttributeChanges[1].AttributeID)
}

func TestEvaluate_RepeatedDriftIsIdempotent(t *testing.T) {
	d, s := newTestDetector(t)
	ctx := context.Background()

	mvo := testMVO(av(mvDepartment, model.Text("Engineering")))
	cso := testCSO(mvo, av(adDepartment, model.Text("Sales")))
	in := Input{CSO: cso, MVO: mvo, ExportRules: []model.SyncRule{exportRule(7, true, directFlow(70, mvDepartment, adDepartment))}}

	_, err := d.Evaluate(ctx, in)
	require.NoError(t, err)
	res, err := d.Evaluate(ctx, in)
	require.NoError(t, err)

	assert.True(t, res.HasDrift())
	assert.Zero(t, res.Staged)
	assert.Nil(t, res.PendingExport)

	pe, err := s.GetPendingExportByTargetObjectID(ctx, cso.ID)
	require.NoError(t, err)
	assert.Len(t, pe.AttributeChanges, 1)
}

// seedPendingExport stores a Pending Export for cso with one change on adDepartment.
func seedPendingExport(t *testing.T, s Store, cso *model.ConnectedSystemObject, ct model.PendingExportChangeType, status model.AttributeChangeStatus, v model.Value) *model.PendingExport {
	t.Helper()
	pe := &model.PendingExport{
		ID:                      uuid.New(),
		ConnectedSystemID:       cso.ConnectedSystemID,
		ConnectedSystemObjectID: cso.ID,
		ChangeType:              ct,
		Status:                  model.PendingExportExported,
		CreatedAt:               testCreated,
	}
	pe.AddChange(model.AttributeChange{
		ID:                 uuid.New(),
		AttributeID:        adDepartment,
		ChangeType:         model.AttributeChangeUpdate,
		Value:              v,
		Status:             status,
		ExportAttemptCount: 2,
	})
	require.NoError(t, s.CreatePendingExport(context.Background(), pe))
	return pe
}

func TestEvaluate_FoldRules(t *testing.T) {
	tests := []struct {
		name        string
		changeType  model.PendingExportChangeType
		status      model.AttributeChangeStatus
		existing    model.Value
		wantValue   model.Value
		wantStatus  model.AttributeChangeStatus
		wantStaged  int
		wantPEState model.PendingExportStatus
	}{
		{
			name:        "not confirmed is reset with new value",
			changeType:  model.PendingExportUpdate,
			status:      model.AttributeChangeExportedNotConfirmed,
			existing:    model.Text("Marketing"),
			wantValue:   model.Text("Engineering"),
			wantStatus:  model.AttributeChangePending,
			wantStaged:  1,
			wantPEState: model.PendingExportExportNotImported,
		},
		{
			name:        "in flight change is left alone",
			changeType:  model.PendingExportUpdate,
			status:      model.AttributeChangeExportedPendingConfirmation,
			existing:    model.Text("Marketing"),
			wantValue:   model.Text("Marketing"),
			wantStatus:  model.AttributeChangeExportedPendingConfirmation,
			wantPEState: model.PendingExportExported,
		},
		{
			name:        "failed change is left for an operator",
			changeType:  model.PendingExportUpdate,
			status:      model.AttributeChangeFailed,
			existing:    model.Text("Marketing"),
			wantValue:   model.Text("Marketing"),
			wantStatus:  model.AttributeChangeFailed,
			wantPEState: model.PendingExportExported,
		},
		{
			name:        "delete export is never folded into",
			changeType:  model.PendingExportDelete,
			status:      model.AttributeChangeExportedNotConfirmed,
			existing:    model.Text("Marketing"),
			wantValue:   model.Text("Marketing"),
			wantStatus:  model.AttributeChangeExportedNotConfirmed,
			wantPEState: model.PendingExportExported,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, s := newTestDetector(t)
			ctx := context.Background()

			mvo := testMVO(av(mvDepartment, model.Text("Engineering")))
			cso := testCSO(mvo, av(adDepartment, model.Text("Sales")))
			seeded := seedPendingExport(t, s, cso, tt.changeType, tt.status, tt.existing)

			res, err := d.Evaluate(ctx, Input{CSO: cso, MVO: mvo, ExportRules: []model.SyncRule{
				exportRule(7, true, directFlow(70, mvDepartment, adDepartment)),
			}})
			require.NoError(t, err)
			assert.Equal(t, tt.wantStaged, res.Staged)
			assert.False(t, res.Created)

			pe, err := s.GetPendingExportByTargetObjectID(ctx, cso.ID)
			require.NoError(t, err)
			assert.Equal(t, seeded.ID, pe.ID)
			assert.Equal(t, tt.wantPEState, pe.Status)
			require.Len(t, pe.AttributeChanges, 1)
			c := pe.AttributeChanges[0]
			assert.Equal(t, tt.wantValue, c.Value)
			assert.Equal(t, tt.wantStatus, c.Status)
			assert.Equal(t, 2, c.ExportAttemptCount, "attempt counter is never reset")
		})
	}
}

func TestEvaluate_AppendsToExistingPendingExport(t *testing.T) {
	d, s := newTestDetector(t)
	ctx := context.Background()

	mvo := testMVO(
		av(mvDepartment, model.Text("Engineering")),
		av(mvDisplayName, model.Text("Jane Doe")),
	)
	cso := testCSO(mvo,
		av(adDepartment, model.Text("Marketing")),
		av(adDisplayName, model.Text("Jane")),
	)
	// Department is already being corrected and awaits confirmation.
	seedPendingExport(t, s, cso, model.PendingExportUpdate, model.AttributeChangeExportedPendingConfirmation, model.Text("Engineering"))

	res, err := d.Evaluate(ctx, Input{CSO: cso, MVO: mvo, ExportRules: []model.SyncRule{
		exportRule(7, true,
			directFlow(70, mvDepartment, adDepartment),
			directFlow(71, mvDisplayName, adDisplayName),
		),
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Staged)

	pe, err := s.GetPendingExportByTargetObjectID(ctx, cso.ID)
	require.NoError(t, err)
	require.Len(t, pe.AttributeChanges, 2)
	assert.Equal(t, model.AttributeChangeExportedPendingConfirmation, pe.AttributeChanges[0].Status)
	assert.Equal(t, adDisplayName, pe.AttributeChanges[1].AttributeID)
	assert.Equal(t, model.AttributeChangePending, pe.AttributeChanges[1].Status)
	assert.Equal(t, model.PendingExportExportNotImported, pe.Status)
}

func TestEvaluate_ExecutingPendingExportIsDeferred(t *testing.T) {
	d, s := newTestDetector(t)
	ctx := context.Background()

	mvo := testMVO(av(mvDepartment, model.Text("Engineering")))
	cso := testCSO(mvo, av(adDepartment, model.Text("Sales")))
	seeded := seedPendingExport(t, s, cso, model.PendingExportUpdate, model.AttributeChangePending, model.Text("Marketing"))
	seeded.Status = model.PendingExportExecuting
	require.NoError(t, s.UpdatePendingExport(ctx, seeded))

	res, err := d.Evaluate(ctx, Input{CSO: cso, MVO: mvo, ExportRules: []model.SyncRule{
		exportRule(7, true, directFlow(70, mvDepartment, adDepartment)),
	}})
	require.NoError(t, err)
	assert.True(t, res.HasDrift())
	assert.Zero(t, res.Staged)

	pe, err := s.GetPendingExportByTargetObjectID(ctx, cso.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Text("Marketing"), pe.AttributeChanges[0].Value)
}
