// Package pricing implements the cost rollup and price derivation for
// catalog products. Everything here is pure arithmetic over the catalog
// types; validation and rounding happen at other boundaries.
package pricing

import "github.com/daoyee/daoyee-quote/internal/catalog"

// Quote bundles the derived prices for one product.
type Quote struct {
	TotalCost    float64 `json:"totalCost"`
	ExWorksPrice float64 `json:"exWorksPrice"`
	PriceWithTax float64 `json:"priceWithTax"`
}

// TotalCost sums every cost line. Order is irrelevant; an empty list costs
// zero.
func TotalCost(costs []catalog.CostItem) float64 {
	var total float64
	for _, c := range costs {
		total += c.Amount
	}
	return total
}

// ExWorksPrice applies the profit margin percentage to a total cost.
func ExWorksPrice(totalCost, profitMargin float64) float64 {
	return totalCost * (1 + profitMargin/100)
}

// PriceWithTax applies the tax rate percentage to an ex-works price. A zero
// tax rate leaves the price unchanged.
func PriceWithTax(exWorks, taxRate float64) float64 {
	return exWorks * (1 + taxRate/100)
}

// ForProduct derives the full quote for one product.
func ForProduct(p catalog.Product) Quote {
	total := TotalCost(p.Costs)
	exWorks := ExWorksPrice(total, p.ProfitMargin)
	return Quote{
		TotalCost:    total,
		ExWorksPrice: exWorks,
		PriceWithTax: PriceWithTax(exWorks, p.TaxRate),
	}
}
