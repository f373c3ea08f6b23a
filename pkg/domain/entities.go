// Package domain defines the core persistent entities, the bill-of-quantities
// document tree, and the rule evaluation primitives used by boqcore.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityProject identifies a construction project record.
	EntityProject EntityType = "project"
	// EntityBillOfQuantities identifies a bill-of-quantities record.
	EntityBillOfQuantities EntityType = "bill_of_quantities"
	// EntityDocument identifies a stored document tree record.
	EntityDocument EntityType = "document"
)

// WorkType enumerates the service categories a bill of quantities covers.
type WorkType string

// Canonical work types carried on bill-of-quantities records.
const (
	WorkTypeBuilding    WorkType = "building"
	WorkTypeCivil       WorkType = "civil"
	WorkTypeElectrical  WorkType = "electrical"
	WorkTypeMechanical  WorkType = "mechanical"
	WorkTypeLandscaping WorkType = "landscaping"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Project groups the bills of quantities belonging to one construction
// undertaking.
type Project struct {
	Base
	Name        string `json:"name"`
	Description string `json:"description"`
	Client      string `json:"client"`
}

// BillOfQuantities is the metadata record of one tender document. The
// document tree itself lives in a DocumentRecord keyed by BoQ ID.
type BillOfQuantities struct {
	Base
	ProjectID        string   `json:"project_id"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	OriginalFilename string   `json:"original_filename"`
	LVCode           string   `json:"lv_code"`
	LVDesignation    string   `json:"lv_designation"`
	WorkType         WorkType `json:"work_type"`
}

// DocumentRecord binds a document tree to its owning bill of quantities.
type DocumentRecord struct {
	Base
	BoQID    string   `json:"boq_id"`
	Document Document `json:"document"`
}

// ItemKind distinguishes the payload shape of a line item.
type ItemKind string

// Line item kinds as they appear in the document tree.
const (
	// ItemBaseText is a shared description that follow-up positions refine.
	ItemBaseText ItemKind = "grundtext"
	// ItemUndivided is a self-contained position without variants.
	ItemUndivided ItemKind = "ungeteilteposition"
	// ItemPosition is a plain position entry inside a base-text group.
	ItemPosition ItemKind = "position"
)

// Document is the root of a bill-of-quantities tree: an ordered list of main
// groups plus document-level properties.
type Document struct {
	Properties Properties `json:"properties"`
	Groups     []Group    `json:"groups"`
}

// Properties carries the metadata block of a tree node. The commercial
// fields (unit, quantity, origin, performance part) are only meaningful on
// positions and follow-up variants.
type Properties struct {
	Keyword           string  `json:"keyword,omitempty"`
	LongText          string  `json:"long_text,omitempty"`
	Unit              string  `json:"unit,omitempty"`
	Quantity          float64 `json:"quantity,omitempty"`
	Origin            string  `json:"origin,omitempty"`
	PartOfPerformance string  `json:"part_of_performance,omitempty"`
}

// Group is a main service group (LG) holding ordered sub-groups.
type Group struct {
	Nr         string     `json:"nr"`
	Title      string     `json:"title"`
	Properties Properties `json:"properties"`
	SubGroups  []SubGroup `json:"sub_groups"`
}

// SubGroup is a sub service group (ULG) holding ordered line items.
type SubGroup struct {
	Nr         string     `json:"nr"`
	Title      string     `json:"title"`
	Properties Properties `json:"properties"`
	Items      []Item     `json:"items"`
}

// Item is one line entry of a sub-group. A base text carries Variants; an
// undivided position stands alone.
type Item struct {
	Nr         string     `json:"nr"`
	Kind       ItemKind   `json:"kind"`
	Properties Properties `json:"properties"`
	Flags      []string   `json:"flags,omitempty"`
	Variants   []Variant  `json:"variants,omitempty"`
}

// Variant is a follow-up position under a base text, identified by its
// single-letter number.
type Variant struct {
	FTNr       string     `json:"ftnr"`
	MFV        string     `json:"mfv,omitempty"`
	Properties Properties `json:"properties"`
	Flags      []string   `json:"flags,omitempty"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
