package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/roach88/metasync/internal/metrics"
	"github.com/roach88/metasync/internal/model"
	"github.com/roach88/metasync/internal/store"
	"github.com/roach88/metasync/internal/testutil"
)

const (
	csAD     = 2
	otUser   = 20
	mvPerson = 1

	mvDisplayName = 1
	mvDepartment  = 2

	adDisplayName = 201
	adDepartment  = 202
	adDN          = 203
)

func testSchema() *model.Schema {
	s := model.NewSchema(
		[]model.MetaverseAttribute{
			{ID: mvDisplayName, Name: "displayName", Type: model.DataTypeText},
			{ID: mvDepartment, Name: "department", Type: model.DataTypeText},
		},
		[]model.ConnectedSystemAttribute{
			{ID: adDisplayName, Name: "displayName", Type: model.DataTypeText, ObjectTypeID: otUser},
			{ID: adDepartment, Name: "department", Type: model.DataTypeText, ObjectTypeID: otUser},
			{ID: adDN, Name: "distinguishedName", Type: model.DataTypeText, ObjectTypeID: otUser, IsSecondaryExternalID: true},
		},
	)
	s.ConnectedSystems = []model.ConnectedSystem{{ID: csAD, Name: "AD"}}
	return s
}

func testRules() []model.SyncRule {
	return []model.SyncRule{{
		ID:                          7,
		Name:                        "AD user export",
		Enabled:                     true,
		Direction:                   model.DirectionExport,
		ConnectedSystemID:           csAD,
		ConnectedSystemObjectTypeID: otUser,
		MetaverseObjectTypeID:       mvPerson,
		EnforceState:                true,
		AttributeFlows: []model.AttributeFlow{
			{ID: 70, Sources: []model.FlowSource{{MetaverseAttributeID: mvDepartment}}, TargetConnectedSystemAttributeID: adDepartment},
			{ID: 71, Sources: []model.FlowSource{{MetaverseAttributeID: mvDisplayName}}, TargetConnectedSystemAttributeID: adDisplayName},
		},
	}}
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestEngine(t *testing.T, s Store, opts ...EngineOption) *Engine {
	t.Helper()
	base := []EngineOption{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
		WithClock(testutil.NewDeterministicClock()),
		WithIDGenerator(testutil.NewSequentialIDs(0xe1)),
	}
	return New(s, testSchema(), testRules(), append(base, opts...)...)
}

// person builds a joined MVO/CSO pair; n distinguishes objects.
func person(n uint64, mvDept, csDept string) ImportedObject {
	mvo := &model.MetaverseObject{
		ID:     testutil.SeqID(0xaa, n),
		TypeID: mvPerson,
		Attributes: []model.AttributeValue{
			{AttributeID: mvDepartment, Value: model.Text(mvDept)},
			{AttributeID: mvDisplayName, Value: model.Text("Person")},
		},
	}
	mvoID := mvo.ID
	cso := &model.ConnectedSystemObject{
		ID:                testutil.SeqID(0xcc, n),
		ConnectedSystemID: csAD,
		TypeID:            otUser,
		MetaverseObjectID: &mvoID,
		Attributes: []model.AttributeValue{
			{AttributeID: adDepartment, Value: model.Text(csDept)},
			{AttributeID: adDisplayName, Value: model.Text("Person")},
		},
	}
	return ImportedObject{CSO: cso, MVO: mvo}
}

var errInjected = errors.New("injected store failure")

// failingStore fails every read for one object.
type failingStore struct {
	*store.Store
	failFor uuid.UUID
}

func (f *failingStore) GetPendingExportByTargetObjectID(ctx context.Context, csoID uuid.UUID) (*model.PendingExport, error) {
	if csoID == f.failFor {
		return nil, errInjected
	}
	return f.Store.GetPendingExportByTargetObjectID(ctx, csoID)
}
