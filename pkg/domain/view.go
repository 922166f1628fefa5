package domain

// Criteria holds the user-supplied listing predicates.
type Criteria struct {
	// Search matches item names case-insensitively as a substring. Empty matches all.
	Search string `json:"search,omitempty"`
	// MinQuantity keeps items with at least this quantity.
	MinQuantity int `json:"min_quantity"`
	// MaxWeight keeps items whose per-unit weight does not exceed the bound.
	// Nil means unbounded.
	MaxWeight *float64 `json:"max_weight,omitempty"`
}

// WeightBound returns a MaxWeight value for v.
func WeightBound(v float64) *float64 {
	return &v
}

// Group is the listing section for one category.
type Group struct {
	Category Category `json:"category"`
	Items    []Item   `json:"items"`
}

// View is the filtered listing grouped by category. Only non-empty groups are present.
type View struct {
	Groups []Group `json:"groups"`
}

// Items flattens the view in group order.
func (v View) Items() []Item {
	var out []Item
	for _, g := range v.Groups {
		out = append(out, g.Items...)
	}
	return out
}

// Len returns the number of items in the view.
func (v View) Len() int {
	n := 0
	for _, g := range v.Groups {
		n += len(g.Items)
	}
	return n
}

// Group returns the items listed under c.
func (v View) Group(c Category) []Item {
	for _, g := range v.Groups {
		if g.Category == c {
			return g.Items
		}
	}
	return nil
}
