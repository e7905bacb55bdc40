package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/metasync/internal/model"
	"github.com/roach88/metasync/internal/testutil"
)

func exportFor(name string, status model.PendingExportStatus, changes ...model.AttributeChange) *model.PendingExport {
	pe := &model.PendingExport{
		ID:                      testutil.SeqID(0x11, 1),
		ConnectedSystemObjectID: ObjectID(name),
		ChangeType:              model.PendingExportUpdate,
		Status:                  status,
		CreatedAt:               testutil.Epoch,
	}
	for _, c := range changes {
		pe.AddChange(c)
	}
	return pe
}

func change(attr int, status model.AttributeChangeStatus, attempts int) model.AttributeChange {
	return model.AttributeChange{
		AttributeID:        attr,
		ChangeType:         model.AttributeChangeUpdate,
		Value:              model.Text("x"),
		Status:             status,
		ExportAttemptCount: attempts,
	}
}

func TestCheckInvariantsClean(t *testing.T) {
	exports := []*model.PendingExport{
		exportFor("alice", model.PendingExportPending, change(1, model.AttributeChangePending, 0)),
		exportFor("bob", model.PendingExportExported, change(1, model.AttributeChangeExportedPendingConfirmation, 4)),
		exportFor("carol", model.PendingExportFailed, change(1, model.AttributeChangeFailed, 5)),
	}
	assert.Empty(t, CheckInvariants(exports, 5, Names{}))
}

func TestCheckInvariantsViolations(t *testing.T) {
	names := Names{ObjectID("alice"): "alice"}

	tests := []struct {
		name    string
		exports []*model.PendingExport
		want    string
	}{
		{
			name:    "empty export",
			exports: []*model.PendingExport{exportFor("alice", model.PendingExportExported)},
			want:    "alice: pending export",
		},
		{
			name: "stale status",
			exports: []*model.PendingExport{
				exportFor("alice", model.PendingExportExported, change(1, model.AttributeChangeExportedNotConfirmed, 1)),
			},
			want: "status Exported does not match changes (want ExportNotImported)",
		},
		{
			name: "retry past limit",
			exports: []*model.PendingExport{
				exportFor("alice", model.PendingExportExportNotImported, change(1, model.AttributeChangeExportedNotConfirmed, 5)),
			},
			want: "is ExportedNotConfirmed after 5 attempts (limit 5)",
		},
		{
			name: "duplicate target",
			exports: []*model.PendingExport{
				exportFor("alice", model.PendingExportPending, change(1, model.AttributeChangePending, 0)),
				exportFor("alice", model.PendingExportPending, change(2, model.AttributeChangePending, 0)),
			},
			want: "alice: 2 pending exports for one object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problems := CheckInvariants(tt.exports, 5, names)
			require.Len(t, problems, 1)
			assert.Contains(t, problems[0], tt.want)
		})
	}
}

func TestNamesFallback(t *testing.T) {
	id := ObjectID("dave")
	assert.Equal(t, id.String(), Names{}.Name(id))
	assert.Equal(t, "dave", Names{id: "dave"}.Name(id))
}
