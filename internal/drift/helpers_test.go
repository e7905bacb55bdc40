package drift

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/roach88/metasync/internal/model"
	"github.com/roach88/metasync/internal/store"
	"github.com/roach88/metasync/internal/testutil"
)

const (
	csHR     = 1
	csAD     = 2
	mvPerson = 1
	otUser   = 20

	mvDisplayName = 1
	mvDepartment  = 2
	mvEmployeeID  = 3

	adDisplayName = 201
	adDepartment  = 202
	adDN          = 203
	adEmployeeID  = 204
)

func testSchema() *model.Schema {
	return model.NewSchema(
		[]model.MetaverseAttribute{
			{ID: mvDisplayName, Name: "displayName", Type: model.DataTypeText},
			{ID: mvDepartment, Name: "department", Type: model.DataTypeText},
			{ID: mvEmployeeID, Name: "employeeId", Type: model.DataTypeUniqueIdentifier},
		},
		[]model.ConnectedSystemAttribute{
			{ID: adDisplayName, Name: "displayName", Type: model.DataTypeText, ObjectTypeID: otUser},
			{ID: adDepartment, Name: "department", Type: model.DataTypeText, ObjectTypeID: otUser},
			{ID: adDN, Name: "distinguishedName", Type: model.DataTypeText, ObjectTypeID: otUser, IsSecondaryExternalID: true},
			{ID: adEmployeeID, Name: "employeeId", Type: model.DataTypeUniqueIdentifier, ObjectTypeID: otUser, IsExternalID: true},
		},
	)
}

func exportRule(id int, enforce bool, flows ...model.AttributeFlow) model.SyncRule {
	return model.SyncRule{
		ID:                          id,
		Name:                        "AD user export",
		Enabled:                     true,
		Direction:                   model.DirectionExport,
		ConnectedSystemID:           csAD,
		ConnectedSystemObjectTypeID: otUser,
		MetaverseObjectTypeID:       mvPerson,
		EnforceState:                enforce,
		AttributeFlows:              flows,
	}
}

func directFlow(id, mvAttr, csAttr int) model.AttributeFlow {
	return model.AttributeFlow{
		ID:                               id,
		Sources:                          []model.FlowSource{{MetaverseAttributeID: mvAttr}},
		TargetConnectedSystemAttributeID: csAttr,
	}
}

func testMVO(attrs ...model.AttributeValue) *model.MetaverseObject {
	return &model.MetaverseObject{
		ID:         uuid.MustParse("00000000-0000-0000-0000-0000000000aa"),
		TypeID:     mvPerson,
		Attributes: attrs,
	}
}

func testCSO(mvo *model.MetaverseObject, attrs ...model.AttributeValue) *model.ConnectedSystemObject {
	cso := &model.ConnectedSystemObject{
		ID:                uuid.MustParse("00000000-0000-0000-0000-0000000000cc"),
		ConnectedSystemID: csAD,
		TypeID:            otUser,
		Attributes:        attrs,
	}
	if mvo != nil {
		id := mvo.ID
		cso.MetaverseObjectID = &id
	}
	return cso
}

func av(attrID int, v model.Value) model.AttributeValue {
	return model.AttributeValue{AttributeID: attrID, Value: v}
}

func newTestDetector(t *testing.T) (*Detector, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "drift.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	d := NewDetector(s, testSchema(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithIDGenerator(testutil.NewSequentialIDs(0xd1)),
		WithClock(testutil.NewDeterministicClock()),
	)
	return d, s
}

var testCreated = testutil.Epoch
