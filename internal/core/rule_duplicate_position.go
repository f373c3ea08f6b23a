package core

import (
	"context"
	"fmt"

	"boqcore/pkg/domain"
	"boqcore/pkg/identifier"
)

// NewDuplicatePositionRule blocks commits where the same full identifier
// occurs more than once in a document tree.
func NewDuplicatePositionRule() Rule {
	return duplicatePositionRule{}
}

type duplicatePositionRule struct{}

func (duplicatePositionRule) Name() string { return "duplicate_position" }

func (duplicatePositionRule) Evaluate(_ context.Context, view RuleView, _ []Change) (Result, error) {
	res := Result{}
	for _, record := range view.ListDocuments() {
		seen := make(map[identifier.Components]int)
		for _, node := range domain.Flatten(record.Document) {
			seen[node.Number]++
		}
		for nr, count := range seen {
			if count < 2 {
				continue
			}
			res.Violations = append(res.Violations, Violation{
				Rule:     "duplicate_position",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("identifier %s occurs %d times in document for BoQ %s", nr.Format(), count, record.BoQID),
				Entity:   EntityDocument,
				EntityID: record.BoQID,
			})
		}
	}
	return res, nil
}
