package core

import (
	"context"
	"fmt"
)

// NewSubGroupUniquenessRule blocks commits where a document holds two groups
// with the same number, or one group holds two sub-groups with the same
// number. AddGroup and AddSubGroup keep this invariant for tree mutations;
// the rule guards documents stored wholesale.
func NewSubGroupUniquenessRule() Rule {
	return subGroupUniquenessRule{}
}

type subGroupUniquenessRule struct{}

func (subGroupUniquenessRule) Name() string { return "subgroup_uniqueness" }

func (subGroupUniquenessRule) Evaluate(_ context.Context, view RuleView, _ []Change) (Result, error) {
	res := Result{}
	for _, record := range view.ListDocuments() {
		groups := make(map[string]int)
		for _, g := range record.Document.Groups {
			groups[g.Nr]++
			subs := make(map[string]int)
			for _, sg := range g.SubGroups {
				subs[sg.Nr]++
			}
			for nr, count := range subs {
				if count < 2 {
					continue
				}
				res.Violations = append(res.Violations, Violation{
					Rule:     "subgroup_uniqueness",
					Severity: SeverityBlock,
					Message:  fmt.Sprintf("group %s holds sub-group %s %d times", g.Nr, nr, count),
					Entity:   EntityDocument,
					EntityID: record.BoQID,
				})
			}
		}
		for nr, count := range groups {
			if count < 2 {
				continue
			}
			res.Violations = append(res.Violations, Violation{
				Rule:     "subgroup_uniqueness",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("document holds group %s %d times", nr, count),
				Entity:   EntityDocument,
				EntityID: record.BoQID,
			})
		}
	}
	return res, nil
}
