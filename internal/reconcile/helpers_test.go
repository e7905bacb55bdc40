package reconcile

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/roach88/metasync/internal/model"
	"github.com/roach88/metasync/internal/store"
)

const (
	attrDisplayName = 201
	attrDepartment  = 202
	attrDN          = 203
	attrMember      = 205
	attrPhoto       = 206
	attrEmployeeID  = 207
)

var csoID = uuid.MustParse("00000000-0000-0000-0000-0000000000cc")

func testLookup() *model.Schema {
	return model.NewSchema(nil, []model.ConnectedSystemAttribute{
		{ID: attrDisplayName, Name: "displayName", Type: model.DataTypeText},
		{ID: attrDepartment, Name: "department", Type: model.DataTypeText},
		{ID: attrDN, Name: "distinguishedName", Type: model.DataTypeText, IsSecondaryExternalID: true},
		{ID: attrMember, Name: "member", Type: model.DataTypeReference},
		{ID: attrPhoto, Name: "thumbnailPhoto", Type: model.DataTypeBinary},
		{ID: attrEmployeeID, Name: "employeeId", Type: model.DataTypeUniqueIdentifier},
	})
}

func newTestReconciler(t *testing.T, opts ...Option) (*Reconciler, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "reconcile.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return New(s, testLookup(), opts...), s
}

// exported builds a change that export execution has attempted `attempts` times.
func exported(attrID int, ct model.AttributeChangeType, v model.Value, attempts int) model.AttributeChange {
	return model.AttributeChange{
		ID:                 uuid.New(),
		AttributeID:        attrID,
		ChangeType:         ct,
		Value:              v,
		Status:             model.AttributeChangeExportedPendingConfirmation,
		ExportAttemptCount: attempts,
	}
}

func seed(t *testing.T, s *store.Store, ct model.PendingExportChangeType, changes ...model.AttributeChange) *model.PendingExport {
	t.Helper()
	pe := &model.PendingExport{
		ID:                      uuid.New(),
		ConnectedSystemID:       2,
		ConnectedSystemObjectID: csoID,
		ChangeType:              ct,
		Status:                  model.PendingExportExported,
		CreatedAt:               time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, c := range changes {
		pe.AddChange(c)
	}
	require.NoError(t, s.CreatePendingExport(context.Background(), pe))
	return pe
}

func imported(attrs ...model.AttributeValue) *model.ConnectedSystemObject {
	return &model.ConnectedSystemObject{
		ID:                csoID,
		ConnectedSystemID: 2,
		TypeID:            20,
		Attributes:        attrs,
	}
}

func av(attrID int, v model.Value) model.AttributeValue {
	return model.AttributeValue{AttributeID: attrID, Value: v}
}

func load(t *testing.T, s *store.Store) *model.PendingExport {
	t.Helper()
	pe, err := s.GetPendingExportByTargetObjectID(context.Background(), csoID)
	require.NoError(t, err)
	return pe
}
