// Package catalog holds the product catalog domain model and the in-memory
// authoritative store for a running session.
package catalog

import (
	"time"

	"github.com/google/uuid"
)

// MaterialType identifies a shared market-priced material category.
type MaterialType string

const (
	MaterialNew MaterialType = "new"
	MaterialOld MaterialType = "old"
	MaterialEVA MaterialType = "eva"
)

// MaterialTypes lists every known category in display order.
var MaterialTypes = []MaterialType{MaterialNew, MaterialOld, MaterialEVA}

// Known reports whether t names a priced material category.
func (t MaterialType) Known() bool {
	switch t {
	case MaterialNew, MaterialOld, MaterialEVA:
		return true
	}
	return false
}

// MaterialPrices maps each material category to its market unit price in
// currency per kilogram. It is shared across all products and not versioned;
// the last write wins.
type MaterialPrices struct {
	New float64 `json:"new"`
	Old float64 `json:"old"`
	EVA float64 `json:"eva"`
}

// DefaultMaterialPrices returns the starting price table used when no
// snapshot has ever been persisted.
func DefaultMaterialPrices() MaterialPrices {
	return MaterialPrices{New: 12.0, Old: 8.5, EVA: 15.0}
}

// UnitPrice resolves the current unit price for a material category.
// Unknown categories price at zero.
func (m MaterialPrices) UnitPrice(t MaterialType) float64 {
	switch t {
	case MaterialNew:
		return m.New
	case MaterialOld:
		return m.Old
	case MaterialEVA:
		return m.EVA
	}
	return 0
}

// CostItem is one line of a product's cost breakdown. For material-linked
// items Amount is derived from Weight and the shared price table and must not
// be edited directly; for plain items Amount is authoritative.
type CostItem struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Amount       float64      `json:"amount"`
	IsMaterial   bool         `json:"isMaterial,omitempty"`
	MaterialType MaterialType `json:"materialType,omitempty"`
	Weight       float64      `json:"weight,omitempty"`
}

// Product is a catalog entry with its full cost breakdown and pricing
// parameters. Timestamps are unix milliseconds to match the persisted wire
// format.
type Product struct {
	ID           string     `json:"id"`
	Code         string     `json:"code"`
	Name         string     `json:"name"`
	Category     string     `json:"category"`
	Description  string     `json:"description"`
	Image        string     `json:"image,omitempty"`
	SizeRange    string     `json:"sizeRange,omitempty"`
	CartonSpec   string     `json:"cartonSpec,omitempty"`
	Colors       string     `json:"colors,omitempty"`
	Costs        []CostItem `json:"costs"`
	ProfitMargin float64    `json:"profitMargin"`
	TaxRate      float64    `json:"taxRate"`
	CreatedAt    int64      `json:"createdAt"`
	UpdatedAt    int64      `json:"updatedAt"`
	AIAnalysis   string     `json:"aiAnalysis,omitempty"`
}

// AppSettings controls the optional remote sync connection. Defaults to
// local-only operation.
type AppSettings struct {
	RemoteDSN   string `json:"remoteDsn"`
	RedisAddr   string `json:"redisAddr"`
	SyncEnabled bool   `json:"syncEnabled"`
}

// NewID mints an identifier for products and cost items.
func NewID() string {
	return uuid.NewString()
}

// NowMillis is the timestamp source for Created/Updated stamps. Overridable
// in tests.
var NowMillis = func() int64 {
	return time.Now().UnixMilli()
}

// DefaultCosts seeds the standard cost breakdown for a newly created product:
// two material-linked lines and two plain lines.
func DefaultCosts() []CostItem {
	return []CostItem{
		{ID: NewID(), Name: "Upper material", IsMaterial: true, MaterialType: MaterialNew},
		{ID: NewID(), Name: "Sole material", IsMaterial: true, MaterialType: MaterialEVA},
		{ID: NewID(), Name: "Labor"},
		{ID: NewID(), Name: "Packaging"},
	}
}

// CloneCosts returns a deep copy of a cost list so callers can mutate it
// without aliasing store state.
func CloneCosts(costs []CostItem) []CostItem {
	if costs == nil {
		return nil
	}
	out := make([]CostItem, len(costs))
	copy(out, costs)
	return out
}

// Clone returns a deep copy of the product.
func (p Product) Clone() Product {
	p.Costs = CloneCosts(p.Costs)
	return p
}
