package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/metasync/internal/model"
)

// CompileSyncRule parses one entry of the sync_rules struct, resolving
// connected system, object type and attribute names against schema.
//
// The CUE value should be the rule struct itself, e.g.:
//
//	sync_rules: "AD user export": {
//		id:                    7
//		direction:             "export"
//		connected_system:      "AD"
//		object_type:           "user"
//		metaverse_object_type: "person"
//		enforce_state:         true
//		flows: [{id: 70, source: "department", target: "department"}]
//	}
func CompileSyncRule(v cue.Value, schema *model.Schema) (*model.SyncRule, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	rule := &model.SyncRule{}

	// The rule name is the struct label.
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		rule.Name = strings.Trim(labels[len(labels)-1].String(), `"`)
	}

	var err error
	if rule.ID, err = requiredInt(v, "id"); err != nil {
		return nil, err
	}
	if rule.Direction, err = parseDirection(v); err != nil {
		return nil, err
	}
	if rule.Enabled, err = optionalBool(v, "enabled", true); err != nil {
		return nil, err
	}
	if rule.EnforceState, err = optionalBool(v, "enforce_state", false); err != nil {
		return nil, err
	}
	if rule.EnforceState && rule.Direction != model.DirectionExport {
		return nil, &CompileError{
			Field:   "enforce_state",
			Message: "enforce_state only applies to export rules",
			Pos:     v.LookupPath(cue.ParsePath("enforce_state")).Pos(),
		}
	}

	csName, err := requiredString(v, "connected_system")
	if err != nil {
		return nil, err
	}
	cs, ok := schema.ConnectedSystemByName(csName)
	if !ok {
		return nil, unknownName(v, "connected_system", "connected system", csName)
	}
	rule.ConnectedSystemID = cs.ID

	otName, err := requiredString(v, "object_type")
	if err != nil {
		return nil, err
	}
	ot, ok := schema.ObjectTypeByName(cs.ID, otName)
	if !ok {
		return nil, unknownName(v, "object_type", fmt.Sprintf("object type of %s", cs.Name), otName)
	}
	rule.ConnectedSystemObjectTypeID = ot.ID

	mvName, err := requiredString(v, "metaverse_object_type")
	if err != nil {
		return nil, err
	}
	mvt, ok := schema.ObjectTypeByName(0, mvName)
	if !ok {
		return nil, unknownName(v, "metaverse_object_type", "metaverse object type", mvName)
	}
	rule.MetaverseObjectTypeID = mvt.ID

	rule.AttributeFlows, err = parseFlows(v, rule, schema)
	if err != nil {
		return nil, err
	}
	return rule, nil
}

func parseDirection(v cue.Value) (model.SyncRuleDirection, error) {
	s, err := requiredString(v, "direction")
	if err != nil {
		return 0, err
	}
	switch s {
	case "import":
		return model.DirectionImport, nil
	case "export":
		return model.DirectionExport, nil
	default:
		return 0, &CompileError{
			Field:   "direction",
			Message: fmt.Sprintf("invalid direction %q, must be \"import\" or \"export\"", s),
			Pos:     v.LookupPath(cue.ParsePath("direction")).Pos(),
		}
	}
}

// parseFlows compiles the flows list. Sources and targets are attribute
// names on the side the rule reads from and writes to respectively; an
// omitted target is kept as a zero id so the gap surfaces at run time.
func parseFlows(v cue.Value, rule *model.SyncRule, schema *model.Schema) ([]model.AttributeFlow, error) {
	flowsVal := v.LookupPath(cue.ParsePath("flows"))
	if !flowsVal.Exists() {
		return nil, nil
	}
	iter, err := flowsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var flows []model.AttributeFlow
	for iter.Next() {
		fv := iter.Value()
		flow := model.AttributeFlow{}
		if flow.ID, err = requiredInt(fv, "id"); err != nil {
			return nil, err
		}

		source, err := optionalString(fv, "source")
		if err != nil {
			return nil, err
		}
		expr, err := optionalString(fv, "expression")
		if err != nil {
			return nil, err
		}
		if source == "" && expr == "" {
			return nil, &CompileError{
				Field:   "flows.source",
				Message: fmt.Sprintf("flow %d needs a source or an expression", flow.ID),
				Pos:     fv.Pos(),
			}
		}
		if source != "" {
			src, ok := resolveSource(rule, schema, source)
			if !ok {
				return nil, unknownName(fv, "source", "source attribute", source)
			}
			flow.Sources = append(flow.Sources, src)
		}
		if expr != "" {
			flow.Sources = append(flow.Sources, model.FlowSource{Expression: expr})
		}

		target, err := optionalString(fv, "target")
		if err != nil {
			return nil, err
		}
		if target != "" && !resolveTarget(rule, schema, target, &flow) {
			return nil, unknownName(fv, "target", "target attribute", target)
		}

		flows = append(flows, flow)
	}
	return flows, nil
}

func resolveSource(rule *model.SyncRule, schema *model.Schema, name string) (model.FlowSource, bool) {
	if rule.Direction == model.DirectionExport {
		a, ok := schema.MetaverseAttributeByName(name)
		return model.FlowSource{MetaverseAttributeID: a.ID}, ok
	}
	a, ok := schema.ConnectedSystemAttributeByName(rule.ConnectedSystemObjectTypeID, name)
	return model.FlowSource{ConnectedSystemAttributeID: a.ID}, ok
}

func resolveTarget(rule *model.SyncRule, schema *model.Schema, name string, flow *model.AttributeFlow) bool {
	if rule.Direction == model.DirectionExport {
		a, ok := schema.ConnectedSystemAttributeByName(rule.ConnectedSystemObjectTypeID, name)
		flow.TargetConnectedSystemAttributeID = a.ID
		return ok
	}
	a, ok := schema.MetaverseAttributeByName(name)
	flow.TargetMetaverseAttributeID = a.ID
	return ok
}

func unknownName(v cue.Value, field, kind, name string) error {
	pos := v.LookupPath(cue.ParsePath(field)).Pos()
	if !pos.IsValid() {
		pos = v.Pos()
	}
	return &CompileError{
		Field:   field,
		Message: fmt.Sprintf("unknown %s %q", kind, name),
		Pos:     pos,
	}
}
