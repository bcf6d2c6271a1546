package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daoyee/daoyee-quote/internal/catalog"
)

func TestTotalCostSumsAllItems(t *testing.T) {
	costs := []catalog.CostItem{
		{ID: "a", Name: "Labor", Amount: 10},
		{ID: "b", Name: "Packaging", Amount: 2.5},
		{ID: "c", Name: "Outsole", Amount: 7.25},
	}
	assert.InDelta(t, 19.75, TotalCost(costs), 1e-9)

	// Commutative: order must not matter.
	reversed := []catalog.CostItem{costs[2], costs[0], costs[1]}
	assert.Equal(t, TotalCost(costs), TotalCost(reversed))
}

func TestTotalCostEmptyList(t *testing.T) {
	assert.Zero(t, TotalCost(nil))
	assert.Zero(t, TotalCost([]catalog.CostItem{}))
}

func TestPriceDerivation(t *testing.T) {
	tests := []struct {
		name         string
		total        float64
		margin       float64
		taxRate      float64
		wantExWorks  float64
		wantWithTax  float64
	}{
		{"typical", 100, 20, 13, 120, 135.6},
		{"zero margin", 50, 0, 10, 50, 55},
		{"zero tax", 80, 25, 0, 100, 100},
		{"negative margin", 100, -10, 0, 90, 90},
		{"zero cost", 0, 20, 13, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exWorks := ExWorksPrice(tt.total, tt.margin)
			assert.InDelta(t, tt.wantExWorks, exWorks, 1e-9)
			assert.InDelta(t, tt.wantWithTax, PriceWithTax(exWorks, tt.taxRate), 1e-9)
		})
	}
}

func TestForProductEndToEnd(t *testing.T) {
	// One plain item at 10 plus 2kg of "new" at 12.0/kg.
	prices := catalog.MaterialPrices{New: 12.0, Old: 8.5, EVA: 15.0}
	p := catalog.Product{
		Costs: []catalog.CostItem{
			{ID: "a", Name: "Labor", Amount: 10},
			{ID: "b", Name: "Upper", IsMaterial: true, MaterialType: catalog.MaterialNew, Weight: 2},
		},
		ProfitMargin: 20,
		TaxRate:      10,
	}
	p.Costs, _ = ReconcileMaterials(p.Costs, prices)

	q := ForProduct(p)
	assert.InDelta(t, 34, q.TotalCost, 1e-9)
	assert.InDelta(t, 40.8, q.ExWorksPrice, 1e-9)
	assert.InDelta(t, 44.88, q.PriceWithTax, 1e-9)
}

func TestReconcileMaterialsUpdatesDerivedAmounts(t *testing.T) {
	prices := catalog.DefaultMaterialPrices()
	costs := []catalog.CostItem{
		{ID: "a", Name: "Upper", IsMaterial: true, MaterialType: catalog.MaterialNew, Weight: 2},
		{ID: "b", Name: "Labor", Amount: 5},
	}

	out, changed := ReconcileMaterials(costs, prices)
	require.True(t, changed)
	assert.InDelta(t, 24.0, out[0].Amount, 1e-9)
	assert.Equal(t, 5.0, out[1].Amount)
	// Input slice untouched.
	assert.Zero(t, costs[0].Amount)
}

func TestReconcileMaterialsIdempotent(t *testing.T) {
	prices := catalog.DefaultMaterialPrices()
	costs := []catalog.CostItem{
		{ID: "a", Name: "Upper", IsMaterial: true, MaterialType: catalog.MaterialNew, Weight: 2},
		{ID: "b", Name: "Sole", IsMaterial: true, MaterialType: catalog.MaterialEVA, Weight: 0.5},
		{ID: "c", Name: "Labor", Amount: 3},
	}

	first, changed := ReconcileMaterials(costs, prices)
	require.True(t, changed)

	second, changed := ReconcileMaterials(first, prices)
	assert.False(t, changed)
	assert.Equal(t, first, second)

	third, changed := ReconcileMaterials(second, prices)
	assert.False(t, changed)
	assert.Equal(t, second, third)
}

func TestReconcileMaterialsPriceChangeTouchesOnlyMatchingType(t *testing.T) {
	prices := catalog.MaterialPrices{New: 12.0, Old: 8.5, EVA: 15.0}
	costs := []catalog.CostItem{
		{ID: "a", Name: "Upper", IsMaterial: true, MaterialType: catalog.MaterialNew, Weight: 2},
		{ID: "b", Name: "Sole", IsMaterial: true, MaterialType: catalog.MaterialEVA, Weight: 1},
		{ID: "c", Name: "Labor", Amount: 10},
	}
	costs, _ = ReconcileMaterials(costs, prices)

	prices.New = 15.0
	out, changed := ReconcileMaterials(costs, prices)
	require.True(t, changed)
	assert.InDelta(t, 30.0, out[0].Amount, 1e-9)
	assert.InDelta(t, 15.0, out[1].Amount, 1e-9) // eva untouched
	assert.Equal(t, 10.0, out[2].Amount)
}

func TestReconcileMaterialsEpsilonPreventsOscillation(t *testing.T) {
	// An amount within epsilon of the derived value must never be rewritten,
	// even when the stored value is not bit-identical to weight*price.
	prices := catalog.MaterialPrices{New: 0.1, Old: 8.5, EVA: 15.0}
	costs := []catalog.CostItem{
		{ID: "a", IsMaterial: true, MaterialType: catalog.MaterialNew, Weight: 3, Amount: 0.30000000000000004},
	}
	out, changed := ReconcileMaterials(costs, prices)
	assert.False(t, changed)
	assert.Equal(t, costs, out)
}

func TestReconcileMaterialsSkipsUnknownType(t *testing.T) {
	costs := []catalog.CostItem{
		{ID: "a", IsMaterial: true, MaterialType: "cork", Weight: 2, Amount: 9},
	}
	out, changed := ReconcileMaterials(costs, catalog.DefaultMaterialPrices())
	assert.False(t, changed)
	assert.Equal(t, 9.0, out[0].Amount)
}
