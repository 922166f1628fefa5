package core

import (
	"strings"

	"pantry/pkg/domain"
)

// Filter derives the grouped listing from a full snapshot. It never fails and
// recomputes everything on each call; pantry-sized inputs make that cheap.
//
// Items are kept when the name contains c.Search case-insensitively, the
// quantity is at least c.MinQuantity and, if c.MaxWeight is set, the per-unit
// weight does not exceed it. Groups follow domain.Categories() order with the
// snapshot order preserved inside each group. Items with an unknown category
// are listed last under domain.CategoryUncategorized.
func Filter(snapshot []domain.Item, c domain.Criteria) domain.View {
	needle := strings.ToLower(c.Search)
	buckets := make(map[domain.Category][]domain.Item)
	for _, item := range snapshot {
		if needle != "" && !strings.Contains(strings.ToLower(item.Name), needle) {
			continue
		}
		if item.Quantity < c.MinQuantity {
			continue
		}
		if c.MaxWeight != nil && item.Weight > *c.MaxWeight {
			continue
		}
		key := item.Category
		if !key.Valid() {
			key = domain.CategoryUncategorized
		}
		buckets[key] = append(buckets[key], item)
	}

	view := domain.View{Groups: []domain.Group{}}
	order := append(domain.Categories(), domain.CategoryUncategorized)
	for _, category := range order {
		if items := buckets[category]; len(items) > 0 {
			view.Groups = append(view.Groups, domain.Group{Category: category, Items: items})
		}
	}
	return view
}
