package drift

import "github.com/roach88/metasync/internal/model"

// ContributionKey identifies one metaverse attribute as seen from one connected system.
type ContributionKey struct {
	ConnectedSystemID    int
	MetaverseAttributeID int
}

// Contribution is an import mapping that flows a connected system's data into
// a metaverse attribute.
type Contribution struct {
	SyncRuleID      int
	AttributeFlowID int
}

// ImportContributions records which connected systems legitimately contribute
// to which metaverse attributes. It is read-only once built and may be shared
// across goroutines.
type ImportContributions map[ContributionKey][]Contribution

// Contributes reports whether connected system csID flows into metaverse attribute mvAttrID.
func (ic ImportContributions) Contributes(csID, mvAttrID int) bool {
	return len(ic[ContributionKey{ConnectedSystemID: csID, MetaverseAttributeID: mvAttrID}]) > 0
}

// BuildImportContributions indexes every enabled import rule's metaverse
// targets. Build it once per synchronisation run and pass it to Evaluate.
func BuildImportContributions(rules []model.SyncRule) ImportContributions {
	ic := make(ImportContributions)
	for _, rule := range rules {
		if !rule.Enabled || rule.Direction != model.DirectionImport {
			continue
		}
		for _, flow := range rule.AttributeFlows {
			if flow.TargetMetaverseAttributeID == 0 {
				continue
			}
			key := ContributionKey{
				ConnectedSystemID:    rule.ConnectedSystemID,
				MetaverseAttributeID: flow.TargetMetaverseAttributeID,
			}
			ic[key] = append(ic[key], Contribution{SyncRuleID: rule.ID, AttributeFlowID: flow.ID})
		}
	}
	return ic
}
