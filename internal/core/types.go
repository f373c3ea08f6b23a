// Package core exposes the transactional service layer over the persistent
// stores: CRUD for projects, bills of quantities and their document trees,
// identifier generation and collision probing, and ONLV export.
package core

import "boqcore/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Base               = domain.Base
	Project            = domain.Project
	BillOfQuantities   = domain.BillOfQuantities
	DocumentRecord     = domain.DocumentRecord
	Document           = domain.Document
	Group              = domain.Group
	SubGroup           = domain.SubGroup
	Item               = domain.Item
	Variant            = domain.Variant
	Properties         = domain.Properties
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
)

const (
	EntityProject          = domain.EntityProject
	EntityBillOfQuantities = domain.EntityBillOfQuantities
	EntityDocument         = domain.EntityDocument
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
