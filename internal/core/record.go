package core

import (
	"encoding/json"
	"fmt"
	"math"

	"pantry/internal/docstore"
	"pantry/pkg/domain"
)

// Record field names. The item name is the document key and is never stored
// inside the record.
const (
	fieldQuantity = "quantity"
	fieldWeight   = "weight"
	fieldUnit     = "unit"
	fieldCategory = "category"
)

func itemRecord(item domain.Item) docstore.Record {
	return docstore.Record{
		fieldQuantity: item.Quantity,
		fieldWeight:   item.Weight,
		fieldUnit:     string(item.Unit),
		fieldCategory: string(item.Category),
	}
}

// itemFromRecord decodes a stored record. Numeric fields accept whatever the
// backend codec produced; unit and category may be missing on records written
// by older clients and are returned empty in that case.
func itemFromRecord(name string, rec docstore.Record) (domain.Item, error) {
	item := domain.Item{Name: name}
	qty, err := recordNumber(rec, fieldQuantity)
	if err != nil {
		return domain.Item{}, fmt.Errorf("%w: record %q: %w", domain.ErrInvalidState, name, err)
	}
	if qty != math.Trunc(qty) {
		return domain.Item{}, fmt.Errorf("%w: record %q: quantity %v is not an integer", domain.ErrInvalidState, name, qty)
	}
	if qty > domain.MaxQuantity || qty < math.MinInt32 {
		return domain.Item{}, fmt.Errorf("%w: record %q: quantity %v is out of range", domain.ErrInvalidState, name, qty)
	}
	item.Quantity = int(qty)
	if item.Weight, err = recordNumber(rec, fieldWeight); err != nil {
		return domain.Item{}, fmt.Errorf("%w: record %q: %w", domain.ErrInvalidState, name, err)
	}
	unit, err := recordString(rec, fieldUnit)
	if err != nil {
		return domain.Item{}, fmt.Errorf("%w: record %q: %w", domain.ErrInvalidState, name, err)
	}
	category, err := recordString(rec, fieldCategory)
	if err != nil {
		return domain.Item{}, fmt.Errorf("%w: record %q: %w", domain.ErrInvalidState, name, err)
	}
	item.Unit = domain.Unit(unit)
	item.Category = domain.Category(category)
	return item, nil
}

func recordNumber(rec docstore.Record, field string) (float64, error) {
	raw, ok := rec[field]
	if !ok || raw == nil {
		return 0, fmt.Errorf("missing %s", field)
	}
	var v float64
	switch n := raw.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%s: %w", field, err)
		}
		v = f
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int8:
		v = float64(n)
	case int16:
		v = float64(n)
	case int32:
		v = float64(n)
	case int64:
		v = float64(n)
	case uint:
		v = float64(n)
	case uint8:
		v = float64(n)
	case uint16:
		v = float64(n)
	case uint32:
		v = float64(n)
	case uint64:
		v = float64(n)
	default:
		return 0, fmt.Errorf("%s has type %T, want number", field, raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s is not finite", field)
	}
	return v, nil
}

func recordString(rec docstore.Record, field string) (string, error) {
	raw, ok := rec[field]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s has type %T, want string", field, raw)
	}
	return s, nil
}
