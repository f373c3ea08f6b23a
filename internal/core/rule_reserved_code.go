package core

import (
	"context"
	"fmt"

	"boqcore/pkg/domain"
	"boqcore/pkg/identifier"
)

// ReservedCodes maps compact identifiers to the human-readable reason they
// must never be accepted.
type ReservedCodes map[string]string

// DefaultReservedCodes returns the codes blocked out of the box. The ranges
// come from the exchange format: 00 at any level is a structural placeholder.
func DefaultReservedCodes() ReservedCodes {
	return ReservedCodes{
		"00":     "group number 00 is reserved for the preliminary remarks block",
		"0000":   "sub-group number 00 is reserved",
		"000000": "position number 00 is reserved",
	}
}

// Check reports whether nr is reserved, with the reason when it is.
func (r ReservedCodes) Check(nr identifier.Components) (bool, string) {
	reason, taken := r[nr.Compact()]
	return taken, reason
}

// NewReservedCodeRule blocks commits that introduce a reserved identifier
// anywhere in a stored document tree.
func NewReservedCodeRule(codes ReservedCodes) Rule {
	return reservedCodeRule{codes: codes}
}

type reservedCodeRule struct {
	codes ReservedCodes
}

func (reservedCodeRule) Name() string { return "reserved_code" }

func (r reservedCodeRule) Evaluate(_ context.Context, view RuleView, _ []Change) (Result, error) {
	res := Result{}
	for _, record := range view.ListDocuments() {
		for _, node := range domain.Flatten(record.Document) {
			taken, reason := r.codes.Check(node.Number)
			if !taken {
				continue
			}
			res.Violations = append(res.Violations, Violation{
				Rule:     "reserved_code",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("identifier %s is reserved: %s", node.Number.Format(), reason),
				Entity:   EntityDocument,
				EntityID: record.BoQID,
			})
		}
	}
	return res, nil
}
