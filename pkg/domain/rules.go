package domain

import (
	"context"
	"fmt"
)

// Action indicates the kind of modification a store operation performed.
type Action string

// Change actions recorded for every inventory operation.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	// ActionNone marks an operation that matched no stored record.
	ActionNone Action = "none"
)

// Change describes the effect of one operation on one item. Before is nil for
// creations and After is nil for deletions.
type Change struct {
	Action Action `json:"action"`
	Name   string `json:"name"`
	Before *Item  `json:"before,omitempty"`
	After  *Item  `json:"after,omitempty"`
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine whether a change is written.
const (
	// SeverityBlock rejects the change before it reaches the store.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but lets the change through.
	SeverityWarn Severity = "warn"
)

// Violation reports a failed check.
type Violation struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Field    string   `json:"field,omitempty"`
	Item     string   `json:"item,omitempty"`
	Message  string   `json:"message"`
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
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

// Warnings returns the non-blocking violations.
func (r Result) Warnings() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == SeverityWarn {
			out = append(out, v)
		}
	}
	return out
}

// Rule inspects proposed changes after the current record has been read and
// before anything is written.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, changes []Change) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance with no rules.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewUnitDriftRule())
	engine.Register(NewCategoryDriftRule())
	return engine
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rule names in evaluation order.
func (e *RulesEngine) Rules() []string {
	names := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		names = append(names, r.Name())
	}
	return names
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, changes []Change) (Result, error) {
	var combined Result
	if e == nil {
		return combined, nil
	}
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, changes)
		if err != nil {
			return Result{}, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		combined.Merge(res)
	}
	return combined, nil
}

type unitDriftRule struct{}

// NewUnitDriftRule warns when an update averages or overwrites a weight that
// was recorded in a different unit. The write still happens; the last
// supplied unit wins.
func NewUnitDriftRule() Rule { return unitDriftRule{} }

func (unitDriftRule) Name() string { return "merge-unit-drift" }

func (r unitDriftRule) Evaluate(_ context.Context, changes []Change) (Result, error) {
	var res Result
	for _, ch := range changes {
		if ch.Action != ActionUpdate || ch.Before == nil || ch.After == nil {
			continue
		}
		if ch.Before.Unit == "" || ch.Before.Unit == ch.After.Unit {
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Rule:     r.Name(),
			Severity: SeverityWarn,
			Field:    "unit",
			Item:     ch.Name,
			Message:  fmt.Sprintf("weight unit changed from %s to %s", ch.Before.Unit, ch.After.Unit),
		})
	}
	return res, nil
}

type categoryDriftRule struct{}

// NewCategoryDriftRule warns when an update moves an item to another category.
func NewCategoryDriftRule() Rule { return categoryDriftRule{} }

func (categoryDriftRule) Name() string { return "category-drift" }

func (r categoryDriftRule) Evaluate(_ context.Context, changes []Change) (Result, error) {
	var res Result
	for _, ch := range changes {
		if ch.Action != ActionUpdate || ch.Before == nil || ch.After == nil {
			continue
		}
		if ch.Before.Category == "" || ch.Before.Category == ch.After.Category {
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Rule:     r.Name(),
			Severity: SeverityWarn,
			Field:    "category",
			Item:     ch.Name,
			Message:  fmt.Sprintf("category changed from %s to %s", ch.Before.Category, ch.After.Category),
		})
	}
	return res, nil
}
