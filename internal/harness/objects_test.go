package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/metasync/internal/model"
)

func objectSchema() *model.Schema {
	s := model.NewSchema(
		[]model.MetaverseAttribute{
			{ID: 1, Name: "department", Type: model.DataTypeText},
			{ID: 2, Name: "employeeId", Type: model.DataTypeLongNumber},
		},
		[]model.ConnectedSystemAttribute{
			{ID: 201, Name: "department", Type: model.DataTypeText, ObjectTypeID: 20},
			{ID: 202, Name: "proxyAddresses", Type: model.DataTypeText, ObjectTypeID: 20},
			{ID: 203, Name: "enabled", Type: model.DataTypeBoolean, ObjectTypeID: 20},
			{ID: 204, Name: "lastLogon", Type: model.DataTypeDateTime, ObjectTypeID: 20},
		},
	)
	s.ConnectedSystems = []model.ConnectedSystem{{ID: 2, Name: "AD"}}
	s.MetaverseObjectTypes = []model.ObjectType{{ID: 1, Name: "person"}}
	s.ConnectedSystemObjectTypes = []model.ObjectType{{ID: 20, Name: "user", ConnectedSystemID: 2}}
	return s
}

func TestObjectID(t *testing.T) {
	assert.Equal(t, ObjectID("alice"), ObjectID("alice"))
	assert.NotEqual(t, ObjectID("alice"), ObjectID("bob"))

	raw := "0191d7a2-0000-7000-8000-000000000001"
	assert.Equal(t, uuid.MustParse(raw), ObjectID(raw))
}

func TestBuildObjects(t *testing.T) {
	logon := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	objs, err := BuildObjects([]ObjectSpec{{
		ID:              "alice",
		ConnectedSystem: "AD",
		ObjectType:      "user",
		Attributes: map[string]any{
			"proxyAddresses": []any{"smtp:a", "smtp:b"},
			"department":     "Sales",
			"enabled":        true,
			"lastLogon":      logon,
		},
		Metaverse: &MetaverseSpec{
			ID:         "person-1",
			ObjectType: "person",
			Attributes: map[string]any{"employeeId": 42, "department": nil},
		},
	}}, objectSchema())
	require.NoError(t, err)
	require.Len(t, objs, 1)

	cso := objs[0].CSO
	assert.Equal(t, ObjectID("alice"), cso.ID)
	assert.Equal(t, 2, cso.ConnectedSystemID)
	assert.Equal(t, 20, cso.TypeID)
	// Attributes are laid out in name order.
	assert.Equal(t, []model.AttributeValue{
		{AttributeID: 201, Value: model.Text("Sales")},
		{AttributeID: 203, Value: model.Boolean(true)},
		{AttributeID: 204, Value: model.DateTime(logon)},
		{AttributeID: 202, Value: model.Text("smtp:a")},
		{AttributeID: 202, Value: model.Text("smtp:b")},
	}, cso.Attributes)

	mvo := objs[0].MVO
	require.NotNil(t, mvo)
	assert.Equal(t, ObjectID("person-1"), mvo.ID)
	assert.Equal(t, []model.AttributeValue{{AttributeID: 2, Value: model.LongNumber(42)}}, mvo.Attributes)
	require.True(t, cso.IsJoined())
	assert.Equal(t, mvo.ID, *cso.MetaverseObjectID)
}

func TestBuildObjectsUnjoined(t *testing.T) {
	objs, err := BuildObjects([]ObjectSpec{{ID: "carol", ConnectedSystem: "AD", ObjectType: "user"}}, objectSchema())
	require.NoError(t, err)
	assert.Nil(t, objs[0].MVO)
	assert.False(t, objs[0].CSO.IsJoined())
	assert.Empty(t, objs[0].CSO.Attributes)
}

func TestBuildObjectsErrors(t *testing.T) {
	tests := []struct {
		name   string
		spec   ObjectSpec
		errMsg string
	}{
		{"missing id", ObjectSpec{ConnectedSystem: "AD", ObjectType: "user"}, "id is required"},
		{"unknown system", ObjectSpec{ID: "a", ConnectedSystem: "LDAP", ObjectType: "user"}, `unknown connected system "LDAP"`},
		{"unknown type", ObjectSpec{ID: "a", ConnectedSystem: "AD", ObjectType: "group"}, `unknown object type "group"`},
		{"unknown attribute", ObjectSpec{ID: "a", ConnectedSystem: "AD", ObjectType: "user",
			Attributes: map[string]any{"title": "x"}}, `unknown attribute "title"`},
		{"bad value", ObjectSpec{ID: "a", ConnectedSystem: "AD", ObjectType: "user",
			Attributes: map[string]any{"enabled": "maybe"}}, `attribute "enabled"`},
		{"unsupported yaml", ObjectSpec{ID: "a", ConnectedSystem: "AD", ObjectType: "user",
			Attributes: map[string]any{"department": map[string]any{"x": 1}}}, "unsupported YAML value"},
		{"unknown metaverse type", ObjectSpec{ID: "a", ConnectedSystem: "AD", ObjectType: "user",
			Metaverse: &MetaverseSpec{ObjectType: "device"}}, `unknown metaverse object type "device"`},
		{"unknown metaverse attribute", ObjectSpec{ID: "a", ConnectedSystem: "AD", ObjectType: "user",
			Metaverse: &MetaverseSpec{ObjectType: "person", Attributes: map[string]any{"title": "x"}}}, `unknown metaverse attribute "title"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildObjects([]ObjectSpec{tt.spec}, objectSchema())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.Contains(t, err.Error(), "objects[0]")
		})
	}
}

func TestLoadObjects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "objects.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
objects:
  - id: alice
    connected_system: AD
    object_type: user
    attributes:
      department: Sales
    metaverse:
      object_type: person
      attributes:
        employeeId: 7
`), 0o644))

	objs, err := LoadObjects(path, objectSchema())
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, model.Text("Sales"), objs[0].CSO.FirstValue(201))
	assert.Equal(t, model.LongNumber(7), objs[0].MVO.FirstValue(2))
	assert.Equal(t, ObjectID("alice"), objs[0].MVO.ID, "metaverse id defaults to the object id")
}

func TestLoadObjectsStrict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "objects.yaml")
	require.NoError(t, os.WriteFile(path, []byte("objects:\n  - id: a\n    atributes: {}\n"), 0o644))

	_, err := LoadObjects(path, objectSchema())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}
