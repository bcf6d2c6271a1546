package pricing

import (
	"math"

	"github.com/daoyee/daoyee-quote/internal/catalog"
)

// amountEpsilon guards the derived material amounts against floating-point
// oscillation: a recomputed amount within this distance of the stored one is
// treated as equal and left untouched, which keeps reconciliation idempotent.
const amountEpsilon = 0.001

// ReconcileMaterials re-derives the amount of every material-linked cost
// item from its weight and the current price table. Items whose recomputed
// amount is within epsilon of the stored value are kept structurally
// identical, so running reconciliation twice with unchanged inputs returns
// the input slice unmodified (changed == false).
//
// Plain cost items and material items with an unknown category are never
// touched.
func ReconcileMaterials(costs []catalog.CostItem, prices catalog.MaterialPrices) ([]catalog.CostItem, bool) {
	changed := false
	out := costs
	for i, c := range costs {
		if !c.IsMaterial || !c.MaterialType.Known() {
			continue
		}
		amount := c.Weight * prices.UnitPrice(c.MaterialType)
		if math.Abs(amount-c.Amount) <= amountEpsilon {
			continue
		}
		if !changed {
			out = catalog.CloneCosts(costs)
			changed = true
		}
		out[i].Amount = amount
	}
	return out, changed
}
