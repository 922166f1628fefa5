// Package domain defines the pantry item model, its enumerations, the
// validation rules applied before any store mutation, and the error taxonomy
// shared by every layer of pantry.
package domain

import (
	"fmt"
	"math"
)

// Unit identifies how an item's weight is measured.
type Unit string

// Supported measurement units. Values are persisted verbatim.
const (
	UnitKilogram   Unit = "kg"
	UnitGram       Unit = "g"
	UnitMilligram  Unit = "mg"
	UnitOunce      Unit = "oz"
	UnitMillilitre Unit = "ml"
	UnitLitre      Unit = "L"
)

var units = []Unit{UnitKilogram, UnitGram, UnitMilligram, UnitOunce, UnitMillilitre, UnitLitre}

// Units returns the supported units in presentation order.
func Units() []Unit {
	return append([]Unit(nil), units...)
}

// Valid reports whether u is one of the supported units.
func (u Unit) Valid() bool {
	for _, candidate := range units {
		if u == candidate {
			return true
		}
	}
	return false
}

// ParseUnit converts user input to a Unit. Matching is exact; "l" is not "L".
func ParseUnit(raw string) (Unit, error) {
	u := Unit(raw)
	if !u.Valid() {
		return "", fmt.Errorf("%w: unknown unit %q", ErrInvalidInput, raw)
	}
	return u, nil
}

// Category classifies pantry items. The declaration order of the supported
// categories is the order listings are grouped in.
type Category string

// Supported categories.
const (
	CategoryVegetable Category = "Vegetable"
	CategoryFruit     Category = "Fruit"
	CategoryDairy     Category = "Dairy"
	// CategoryUncategorized labels the listing group for stored records whose
	// category is missing or unknown. It is never accepted as input.
	CategoryUncategorized Category = "Uncategorized"
)

var categories = []Category{CategoryVegetable, CategoryFruit, CategoryDairy}

// Categories returns the supported categories in grouping order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// Valid reports whether c is one of the supported categories.
func (c Category) Valid() bool {
	for _, candidate := range categories {
		if c == candidate {
			return true
		}
	}
	return false
}

// ParseCategory converts user input to a Category.
func ParseCategory(raw string) (Category, error) {
	c := Category(raw)
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidInput, raw)
	}
	return c, nil
}

// Item is a single pantry entry. Name is the document key in the backing
// store; Weight is always the weight of one unit of quantity.
type Item struct {
	Name     string   `json:"name"`
	Quantity int      `json:"quantity"`
	Weight   float64  `json:"weight"`
	Unit     Unit     `json:"unit"`
	Category Category `json:"category"`
}

// TotalWeight returns the weight of the whole stock of the item.
func (i Item) TotalWeight() float64 {
	return i.Weight * float64(i.Quantity)
}

// MaxQuantity is the largest quantity a stored record may hold.
const MaxQuantity = math.MaxInt32

// Validate checks the item as user input: a non-empty name, quantity between
// one and MaxQuantity, a finite non-negative weight and a supported unit and
// category.
// The returned error is a ValidationError listing every failed check.
func (i Item) Validate() error {
	var res Result
	if i.Name == "" {
		res.Violations = append(res.Violations, fieldViolation(i, "name", "name is required"))
	}
	switch {
	case i.Quantity < 1:
		res.Violations = append(res.Violations, fieldViolation(i, "quantity", fmt.Sprintf("quantity must be at least 1, got %d", i.Quantity)))
	case i.Quantity > MaxQuantity:
		res.Violations = append(res.Violations, fieldViolation(i, "quantity", fmt.Sprintf("quantity must be at most %d, got %d", MaxQuantity, i.Quantity)))
	}
	if math.IsNaN(i.Weight) || math.IsInf(i.Weight, 0) || i.Weight < 0 {
		res.Violations = append(res.Violations, fieldViolation(i, "weight", fmt.Sprintf("weight must be a non-negative number, got %v", i.Weight)))
	}
	if !i.Unit.Valid() {
		res.Violations = append(res.Violations, fieldViolation(i, "unit", fmt.Sprintf("unknown unit %q", i.Unit)))
	}
	if !i.Category.Valid() {
		res.Violations = append(res.Violations, fieldViolation(i, "category", fmt.Sprintf("unknown category %q", i.Category)))
	}
	if len(res.Violations) == 0 {
		return nil
	}
	return ValidationError{Result: res}
}

func fieldViolation(i Item, field, msg string) Violation {
	return Violation{
		Rule:     "item-" + field,
		Severity: SeverityBlock,
		Field:    field,
		Item:     i.Name,
		Message:  msg,
	}
}

// FormDefaults holds the unit and category preselected on the add and update
// forms. It is an immutable value handed to form handling code.
type FormDefaults struct {
	Unit     Unit     `yaml:"unit" json:"unit"`
	Category Category `yaml:"category" json:"category"`
}

// DefaultFormDefaults returns kilograms and the first category.
func DefaultFormDefaults() FormDefaults {
	return FormDefaults{Unit: UnitKilogram, Category: categories[0]}
}

// Validate ensures both defaults are supported values.
func (d FormDefaults) Validate() error {
	if !d.Unit.Valid() {
		return fmt.Errorf("%w: default unit %q", ErrInvalidInput, d.Unit)
	}
	if !d.Category.Valid() {
		return fmt.Errorf("%w: default category %q", ErrInvalidInput, d.Category)
	}
	return nil
}

// Apply fills an empty unit or category on item with the defaults.
func (d FormDefaults) Apply(item Item) Item {
	if item.Unit == "" {
		item.Unit = d.Unit
	}
	if item.Category == "" {
		item.Category = d.Category
	}
	return item
}
