package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestResultMergeAndBlocking(t *testing.T) {
	var result Result
	result.Merge(Result{Violations: []Violation{{Rule: "warn", Severity: SeverityWarn}}})
	if result.HasBlocking() {
		t.Fatalf("expected no blocking violations")
	}
	result.Merge(Result{Violations: []Violation{{Rule: "block", Severity: SeverityBlock}}})
	if !result.HasBlocking() {
		t.Fatalf("expected blocking violation")
	}
	if got := len(result.Warnings()); got != 1 {
		t.Fatalf("expected one warning, got %d", got)
	}
	err := RuleViolationError{Result: result}
	if err.Error() == "" {
		t.Fatalf("expected error string")
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected rule violation to match ErrInvalidInput")
	}
}

func TestResultMergeEmptyInput(t *testing.T) {
	original := Result{Violations: []Violation{{Rule: "existing", Severity: SeverityWarn}}}
	original.Merge(Result{})
	if len(original.Violations) != 1 || original.Violations[0].Rule != "existing" {
		t.Fatalf("expected original violations to remain, got %+v", original.Violations)
	}
}

func TestRulesEngineEvaluate(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{"warn"})
	res, err := engine.Evaluate(context.Background(), nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 1 {
		t.Fatalf("expected violation")
	}
	if names := engine.Rules(); len(names) != 1 || names[0] != "warn" {
		t.Fatalf("unexpected rule names %v", names)
	}
}

func TestRulesEngineNilIsNoop(t *testing.T) {
	var engine *RulesEngine
	res, err := engine.Evaluate(context.Background(), []Change{{Action: ActionCreate}})
	if err != nil || len(res.Violations) != 0 {
		t.Fatalf("expected empty result from nil engine, got %+v %v", res, err)
	}
}

type staticRule struct{ name string }

func (r staticRule) Name() string { return r.name }

func (r staticRule) Evaluate(context.Context, []Change) (Result, error) {
	return Result{Violations: []Violation{{Rule: r.name, Severity: SeverityWarn}}}, nil
}

func TestRulesEngineEvaluateError(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(errorRule{})
	if _, err := engine.Evaluate(context.Background(), nil); err == nil {
		t.Fatalf("expected evaluation error")
	}
}

type errorRule struct{}

func (errorRule) Name() string { return "error" }

func (errorRule) Evaluate(context.Context, []Change) (Result, error) {
	return Result{}, fmt.Errorf("boom")
}

func TestDefaultRulesWarnOnDrift(t *testing.T) {
	before := Item{Name: "milk", Quantity: 1, Weight: 1, Unit: UnitLitre, Category: CategoryDairy}
	after := Item{Name: "milk", Quantity: 2, Weight: 500, Unit: UnitMillilitre, Category: CategoryFruit}
	engine := NewDefaultRulesEngine()
	res, err := engine.Evaluate(context.Background(), []Change{{Action: ActionUpdate, Name: "milk", Before: &before, After: &after}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.HasBlocking() {
		t.Fatalf("drift rules must not block")
	}
	if len(res.Warnings()) != 2 {
		t.Fatalf("expected unit and category warnings, got %+v", res.Violations)
	}
}

func TestDefaultRulesIgnoreCreatesAndStableUpdates(t *testing.T) {
	item := Item{Name: "kale", Quantity: 1, Weight: 0.5, Unit: UnitKilogram, Category: CategoryVegetable}
	legacy := Item{Name: "kale", Quantity: 3, Weight: 0.5}
	changes := []Change{
		{Action: ActionCreate, Name: "kale", After: &item},
		{Action: ActionUpdate, Name: "kale", Before: &item, After: &item},
		{Action: ActionUpdate, Name: "kale", Before: &legacy, After: &item},
		{Action: ActionDelete, Name: "kale", Before: &item},
	}
	res, err := NewDefaultRulesEngine().Evaluate(context.Background(), changes)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("expected no violations, got %+v", res.Violations)
	}
}
