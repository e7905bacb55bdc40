package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/metasync/internal/model"
)

func exportRule(id int, name string, flows ...model.AttributeFlow) model.SyncRule {
	return model.SyncRule{
		ID:                          id,
		Name:                        name,
		Enabled:                     true,
		Direction:                   model.DirectionExport,
		ConnectedSystemID:           2,
		ConnectedSystemObjectTypeID: 20,
		MetaverseObjectTypeID:       1,
		EnforceState:                true,
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

func codes(errs []ValidationError) []string {
	var out []string
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func TestValidateValid(t *testing.T) {
	cfg := &Config{
		Rules: []model.SyncRule{exportRule(1, "a", directFlow(10, 1, 201))},
	}
	assert.Empty(t, Validate(cfg))
}

func TestValidateDuplicateIDs(t *testing.T) {
	cfg := &Config{
		MetaverseAttributes: []model.MetaverseAttribute{
			{ID: 1, Name: "displayName"},
			{ID: 1, Name: "cn"},
		},
		ConnectedSystemAttributes: []model.ConnectedSystemAttribute{
			{ID: 201, Name: "displayName"},
			{ID: 201, Name: "cn"},
		},
		Schema: &model.Schema{
			MetaverseObjectTypes:       []model.ObjectType{{ID: 1, Name: "person"}},
			ConnectedSystemObjectTypes: []model.ObjectType{{ID: 1, Name: "user", ConnectedSystemID: 2}},
		},
		Rules: []model.SyncRule{
			exportRule(1, "a", directFlow(10, 1, 201)),
			exportRule(1, "b", directFlow(10, 2, 202)),
		},
	}

	errs := Validate(cfg)
	assert.Equal(t, []string{
		ErrDuplicateMetaverseAttribute,
		ErrDuplicateSystemAttribute,
		ErrDuplicateObjectType,
		ErrDuplicateRule,
		ErrDuplicateFlow,
	}, codes(errs))
	assert.True(t, HasErrors(errs))
	assert.Contains(t, errs[0].Message, `"displayName"`)
}

func TestValidateConflictingEnforcement(t *testing.T) {
	cfg := &Config{
		Rules: []model.SyncRule{
			exportRule(1, "a", directFlow(10, 1, 201)),
			exportRule(2, "b", directFlow(20, 2, 201)),
		},
	}

	errs := Validate(cfg)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrConflictingEnforcement, errs[0].Code)
	assert.Equal(t, SeverityWarning, errs[0].Severity)
	assert.Contains(t, errs[0].Message, `"a"`)
}

func TestValidateIgnoresUnenforcedRules(t *testing.T) {
	b := exportRule(2, "b", directFlow(20, 2, 201))
	b.EnforceState = false
	c := exportRule(3, "c", directFlow(30, 2, 201))
	c.Enabled = false

	cfg := &Config{Rules: []model.SyncRule{exportRule(1, "a", directFlow(10, 1, 201)), b, c}}
	assert.Empty(t, Validate(cfg))
}

func TestValidateWarnings(t *testing.T) {
	expr := model.AttributeFlow{
		ID:                               11,
		Sources:                          []model.FlowSource{{Expression: "upper(displayName)"}},
		TargetConnectedSystemAttributeID: 202,
	}
	cfg := &Config{
		Rules: []model.SyncRule{
			exportRule(1, "a", expr),
			exportRule(2, "empty"),
		},
	}

	errs := Validate(cfg)
	assert.Equal(t, []string{ErrEnforcedExpressionOnly, ErrRuleNoFlows}, codes(errs))
	assert.False(t, HasErrors(errs))
}

func TestValidationErrorString(t *testing.T) {
	e := ValidationError{Field: "sync_rules.a", Message: "boom", Code: ErrDuplicateRule}
	assert.Equal(t, "[E104] sync_rules.a: boom", e.Error())
}
