package compiler

import (
	"fmt"

	"github.com/roach88/metasync/internal/model"
)

// Validation error codes (E100-E199)
const (
	ErrDuplicateMetaverseAttribute = "E101" // metaverse attribute id reused
	ErrDuplicateSystemAttribute    = "E102" // connected-system attribute id reused
	ErrDuplicateObjectType         = "E103" // object type id reused
	ErrDuplicateRule               = "E104" // sync rule id reused
	ErrDuplicateFlow               = "E105" // attribute flow id reused
	ErrFlowNoTarget                = "E106" // flow has no target attribute
	ErrEnforcedExpressionOnly      = "E107" // enforced flow cannot be checked for drift
	ErrConflictingEnforcement      = "E108" // two enforced rules own one attribute
	ErrRuleNoFlows                 = "E109" // rule has no attribute flows
)

// Severity levels for ValidationError.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ValidationError represents a configuration validation finding.
type ValidationError struct {
	Field    string `json:"field"`
	Message  string `json:"message"`
	Code     string `json:"code"`
	Severity string `json:"severity"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// HasErrors reports whether any finding is an error rather than a warning.
func HasErrors(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate checks a compiled configuration for problems the compiler cannot
// see one rule at a time. Returns all findings (does not fail-fast).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateSchema(cfg)...)
	errs = append(errs, validateRules(cfg)...)
	return errs
}

func validateSchema(cfg *Config) []ValidationError {
	var errs []ValidationError

	mvIDs := make(map[int]string)
	for _, a := range cfg.MetaverseAttributes {
		if prev, ok := mvIDs[a.ID]; ok {
			errs = append(errs, ValidationError{
				Field:    "metaverse.attributes." + a.Name,
				Message:  fmt.Sprintf("id %d already used by %q", a.ID, prev),
				Code:     ErrDuplicateMetaverseAttribute,
				Severity: SeverityError,
			})
			continue
		}
		mvIDs[a.ID] = a.Name
	}

	csIDs := make(map[int]string)
	for _, a := range cfg.ConnectedSystemAttributes {
		if prev, ok := csIDs[a.ID]; ok {
			errs = append(errs, ValidationError{
				Field:    "attributes." + a.Name,
				Message:  fmt.Sprintf("id %d already used by %q", a.ID, prev),
				Code:     ErrDuplicateSystemAttribute,
				Severity: SeverityError,
			})
			continue
		}
		csIDs[a.ID] = a.Name
	}

	if cfg.Schema == nil {
		return errs
	}
	typeIDs := make(map[int]string)
	types := append(append([]model.ObjectType{}, cfg.Schema.MetaverseObjectTypes...), cfg.Schema.ConnectedSystemObjectTypes...)
	for _, t := range types {
		if prev, ok := typeIDs[t.ID]; ok {
			errs = append(errs, ValidationError{
				Field:    "object_types." + t.Name,
				Message:  fmt.Sprintf("id %d already used by %q", t.ID, prev),
				Code:     ErrDuplicateObjectType,
				Severity: SeverityError,
			})
			continue
		}
		typeIDs[t.ID] = t.Name
	}
	return errs
}

type enforcedTarget struct {
	objectTypeID int
	attributeID  int
}

func validateRules(cfg *Config) []ValidationError {
	var errs []ValidationError
	ruleIDs := make(map[int]string)
	flowIDs := make(map[int]string)
	owners := make(map[enforcedTarget]string)

	for _, rule := range cfg.Rules {
		field := "sync_rules." + rule.Name
		if prev, ok := ruleIDs[rule.ID]; ok {
			errs = append(errs, ValidationError{
				Field:    field,
				Message:  fmt.Sprintf("id %d already used by %q", rule.ID, prev),
				Code:     ErrDuplicateRule,
				Severity: SeverityError,
			})
		} else {
			ruleIDs[rule.ID] = rule.Name
		}

		if len(rule.AttributeFlows) == 0 {
			errs = append(errs, ValidationError{
				Field:    field + ".flows",
				Message:  "rule has no attribute flows",
				Code:     ErrRuleNoFlows,
				Severity: SeverityWarning,
			})
		}

		for i, flow := range rule.AttributeFlows {
			flowField := fmt.Sprintf("%s.flows[%d]", field, i)
			if prev, ok := flowIDs[flow.ID]; ok {
				errs = append(errs, ValidationError{
					Field:    flowField,
					Message:  fmt.Sprintf("flow id %d already used in %q", flow.ID, prev),
					Code:     ErrDuplicateFlow,
					Severity: SeverityError,
				})
			} else {
				flowIDs[flow.ID] = rule.Name
			}

			target := flow.TargetMetaverseAttributeID
			if rule.Direction == model.DirectionExport {
				target = flow.TargetConnectedSystemAttributeID
			}
			if target == 0 {
				errs = append(errs, ValidationError{
					Field:    flowField + ".target",
					Message:  fmt.Sprintf("flow %d has no target attribute and will be skipped", flow.ID),
					Code:     ErrFlowNoTarget,
					Severity: SeverityWarning,
				})
				continue
			}

			if !rule.Enabled || !rule.EnforceState {
				continue
			}
			if expressionOnly(flow) {
				errs = append(errs, ValidationError{
					Field:    flowField + ".expression",
					Message:  fmt.Sprintf("flow %d is computed and is not checked for drift", flow.ID),
					Code:     ErrEnforcedExpressionOnly,
					Severity: SeverityWarning,
				})
			}
			key := enforcedTarget{objectTypeID: rule.ConnectedSystemObjectTypeID, attributeID: target}
			if prev, ok := owners[key]; ok && prev != rule.Name {
				errs = append(errs, ValidationError{
					Field:    flowField + ".target",
					Message:  fmt.Sprintf("attribute %d is also enforced by %q", target, prev),
					Code:     ErrConflictingEnforcement,
					Severity: SeverityWarning,
				})
			} else if !ok {
				owners[key] = rule.Name
			}
		}
	}
	return errs
}

func expressionOnly(flow model.AttributeFlow) bool {
	if len(flow.Sources) == 0 {
		return false
	}
	for _, s := range flow.Sources {
		if !s.IsExpression() {
			return false
		}
	}
	return true
}
