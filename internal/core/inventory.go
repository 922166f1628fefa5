package core

import (
	"context"
	"errors"
	"fmt"
	"math"

	"pantry/internal/docstore"
	"pantry/pkg/domain"
)

// InventoryStore translates pantry operations into keyed reads and writes on
// one document collection. Every mutation is a read-modify-write on a single
// key; there are no cross-key transactions and concurrent writers race.
type InventoryStore struct {
	store      docstore.Store
	collection string
	engine     *domain.RulesEngine
}

// NewInventoryStore binds store to collection (DefaultCollection when empty).
// A nil engine evaluates no rules.
func NewInventoryStore(store docstore.Store, collection string, engine *domain.RulesEngine) *InventoryStore {
	if collection == "" {
		collection = docstore.DefaultCollection
	}
	return &InventoryStore{store: store, collection: collection, engine: engine}
}

// Collection returns the bound collection name.
func (s *InventoryStore) Collection() string { return s.collection }

func unavailable(op string, err error) error {
	if errors.Is(err, docstore.ErrInvalidKey) {
		return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, op, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, op, err)
}

// FetchAll reads every document of the collection in the backend's order.
func (s *InventoryStore) FetchAll(ctx context.Context) ([]domain.Item, error) {
	docs, err := s.store.List(ctx, s.collection)
	if err != nil {
		return nil, unavailable("list", err)
	}
	items := make([]domain.Item, 0, len(docs))
	for _, doc := range docs {
		item, err := itemFromRecord(doc.Key, doc.Fields)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Get returns the stored item for name.
func (s *InventoryStore) Get(ctx context.Context, name string) (domain.Item, bool, error) {
	if name == "" {
		return domain.Item{}, false, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	rec, ok, err := s.store.Get(ctx, s.collection, name)
	if err != nil {
		return domain.Item{}, false, unavailable("get "+name, err)
	}
	if !ok {
		return domain.Item{}, false, nil
	}
	item, err := itemFromRecord(name, rec)
	if err != nil {
		return domain.Item{}, false, err
	}
	return item, true, nil
}

// UpsertMerge creates item or folds it into the stored record: quantities are
// summed, the per-unit weight becomes the quantity-weighted average and unit
// and category take the supplied values.
func (s *InventoryStore) UpsertMerge(ctx context.Context, item domain.Item) (domain.Change, domain.Result, error) {
	if err := item.Validate(); err != nil {
		return domain.Change{}, domain.Result{}, err
	}
	current, ok, err := s.Get(ctx, item.Name)
	if err != nil {
		return domain.Change{}, domain.Result{}, err
	}
	change := domain.Change{Action: domain.ActionCreate, Name: item.Name}
	next := item
	if ok {
		next, err = mergeItems(current, item)
		if err != nil {
			return domain.Change{}, domain.Result{}, err
		}
		change.Action = domain.ActionUpdate
		change.Before = &current
	}
	change.After = &next
	return s.apply(ctx, change)
}

// UpsertReplace overwrites every field of an existing record. A missing record
// is left absent; replace never creates.
func (s *InventoryStore) UpsertReplace(ctx context.Context, item domain.Item) (domain.Change, domain.Result, error) {
	if err := item.Validate(); err != nil {
		return domain.Change{}, domain.Result{}, err
	}
	current, ok, err := s.Get(ctx, item.Name)
	if err != nil {
		return domain.Change{}, domain.Result{}, err
	}
	if !ok {
		return domain.Change{Action: domain.ActionNone, Name: item.Name}, domain.Result{}, nil
	}
	next := item
	return s.apply(ctx, domain.Change{Action: domain.ActionUpdate, Name: item.Name, Before: &current, After: &next})
}

// DecrementOrDelete removes one unit of name. The record is deleted when its
// last unit goes; otherwise weight, unit and category are kept.
func (s *InventoryStore) DecrementOrDelete(ctx context.Context, name string) (domain.Change, domain.Result, error) {
	current, ok, err := s.Get(ctx, name)
	if err != nil {
		return domain.Change{}, domain.Result{}, err
	}
	if !ok {
		return domain.Change{Action: domain.ActionNone, Name: name}, domain.Result{}, nil
	}
	next, remove, err := decrementItem(current)
	if err != nil {
		return domain.Change{}, domain.Result{}, err
	}
	change := domain.Change{Action: domain.ActionUpdate, Name: name, Before: &current, After: &next}
	if remove {
		change.Action = domain.ActionDelete
		change.After = nil
	}
	return s.apply(ctx, change)
}

// apply evaluates the rules engine against change and writes it when nothing blocks.
func (s *InventoryStore) apply(ctx context.Context, change domain.Change) (domain.Change, domain.Result, error) {
	res, err := s.engine.Evaluate(ctx, []domain.Change{change})
	if err != nil {
		return domain.Change{}, domain.Result{}, err
	}
	if res.HasBlocking() {
		return domain.Change{}, res, domain.RuleViolationError{Result: res}
	}
	switch change.Action {
	case domain.ActionDelete:
		if _, err := s.store.Delete(ctx, s.collection, change.Name); err != nil {
			return domain.Change{}, res, unavailable("delete "+change.Name, err)
		}
	case domain.ActionCreate, domain.ActionUpdate:
		if err := s.store.Set(ctx, s.collection, change.Name, itemRecord(*change.After)); err != nil {
			return domain.Change{}, res, unavailable("set "+change.Name, err)
		}
	}
	return change, res, nil
}

// mergeItems folds add into current. The result must be a record that
// itemFromRecord can read back: a quantity in [1, MaxQuantity] and a finite
// weight. Anything else is rejected before the write.
func mergeItems(current, add domain.Item) (domain.Item, error) {
	total := current.Quantity + add.Quantity
	if total <= 0 || total > domain.MaxQuantity {
		return domain.Item{}, fmt.Errorf("%w: merging %q yields quantity %d", domain.ErrInvalidState, add.Name, total)
	}
	merged := add
	merged.Quantity = total
	merged.Weight = (current.Weight*float64(current.Quantity) + add.Weight*float64(add.Quantity)) / float64(total)
	if math.IsNaN(merged.Weight) || math.IsInf(merged.Weight, 0) {
		return domain.Item{}, fmt.Errorf("%w: merging %q overflows the weight", domain.ErrInvalidState, add.Name)
	}
	return merged, nil
}

func decrementItem(current domain.Item) (next domain.Item, remove bool, err error) {
	switch {
	case current.Quantity < 1:
		return domain.Item{}, false, fmt.Errorf("%w: stored quantity %d for %q", domain.ErrInvalidState, current.Quantity, current.Name)
	case current.Quantity == 1:
		return domain.Item{}, true, nil
	default:
		next = current
		next.Quantity--
		return next, false, nil
	}
}
