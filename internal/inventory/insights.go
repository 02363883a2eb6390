package inventory

import (
	"fmt"

	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/domain"
)

// Insight kinds.
const (
	InsightLowStock    = "low_stock"
	InsightSellingFast = "selling_fast"
	InsightHealthy     = "healthy"
)

// Insight is one restocking suggestion.
type Insight struct {
	Kind string `json:"kind"`
	Item string `json:"item,omitempty"`
	Text string `json:"text"`
}

// DeriveInsights emits at most one insight per record, low stock taking
// precedence over fast selling. With nothing to report it returns a single
// healthy insight.
func DeriveInsights(records []domain.InventoryRecord) []Insight {
	var out []Insight
	for _, r := range records {
		switch {
		case r.NeedsReorder():
			out = append(out, Insight{
				Kind: InsightLowStock,
				Item: r.Name,
				Text: fmt.Sprintf("⚠️ %s is running low (Stock: %d). Consider reordering.", r.Name, r.Stock),
			})
		case r.SellingFast():
			out = append(out, Insight{
				Kind: InsightSellingFast,
				Item: r.Name,
				Text: fmt.Sprintf("🔥 %s is selling fast! (%d sold today)", r.Name, r.Sold),
			})
		}
	}
	if len(out) == 0 {
		return []Insight{{Kind: InsightHealthy, Text: "✅ All inventory levels are healthy!"}}
	}
	return out
}

// Row is a record prepared for the inventory table.
type Row struct {
	Index    int                    `json:"index"`
	Record   domain.InventoryRecord `json:"record"`
	LowStock bool                   `json:"low_stock"`
}

// Rows marks each record's position and low-stock state.
func Rows(records []domain.InventoryRecord) []Row {
	rows := make([]Row, len(records))
	for i, r := range records {
		rows[i] = Row{Index: i, Record: r, LowStock: r.NeedsReorder()}
	}
	return rows
}
