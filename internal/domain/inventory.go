package domain

import "strings"

// InventoryRecord is one stock line tracked by the inventory dashboard.
// JSON keys match the stored collection format.
type InventoryRecord struct {
	Name    string `json:"item" yaml:"item"`
	Stock   int    `json:"stock" yaml:"stock"`
	Sold    int    `json:"sold" yaml:"sold"`
	Reorder int    `json:"reorder" yaml:"reorder"`
}

// SameItem reports whether two names refer to the same item (case-insensitive).
func (r InventoryRecord) SameItem(name string) bool {
	return strings.EqualFold(r.Name, name)
}

// NeedsReorder reports whether stock is at or below the reorder threshold.
func (r InventoryRecord) NeedsReorder() bool {
	return r.Stock <= r.Reorder
}

// SellingFast reports whether more than half of the current stock was sold.
func (r InventoryRecord) SellingFast() bool {
	return float64(r.Sold) > float64(r.Stock)*0.5
}
