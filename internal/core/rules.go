package core

import "boqcore/pkg/domain"

type (
	Rule        = domain.Rule
	RuleView    = domain.RuleView
	RulesEngine = domain.RulesEngine
)

// NewRulesEngine constructs an empty engine instance.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewReservedCodeRule(DefaultReservedCodes()))
	engine.Register(NewDuplicatePositionRule())
	engine.Register(NewSubGroupUniquenessRule())
	return engine
}
