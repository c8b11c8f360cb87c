package order

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PricedLine is one fully resolved line as fed to the pricing calculator:
// all prices are already snapshotted from the catalog, so computing a
// total needs no I/O.
type PricedLine struct {
	UnitPrice   decimal.Decimal
	Quantity    int
	AddonPrices []decimal.Decimal
}

// ComputeTotal returns the order total for the given lines:
// sum of (unit price + sum of add-on unit prices) × quantity, rounded to
// the currency's two minor-unit places. Pure function, no catalog access.
func ComputeTotal(lines []PricedLine) (decimal.Decimal, error) {
	if len(lines) == 0 {
		return decimal.Zero, fmt.Errorf("%w: order must contain at least one item", ErrInvalidOrder)
	}

	total := decimal.Zero
	for i, line := range lines {
		if line.Quantity < 1 {
			return decimal.Zero, fmt.Errorf("%w: line %d quantity must be at least 1", ErrInvalidOrder, i)
		}
		if line.UnitPrice.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: line %d unit price cannot be negative", ErrInvalidOrder, i)
		}

		perUnit := line.UnitPrice
		for _, addonPrice := range line.AddonPrices {
			if addonPrice.IsNegative() {
				return decimal.Zero, fmt.Errorf("%w: line %d add-on price cannot be negative", ErrInvalidOrder, i)
			}
			perUnit = perUnit.Add(addonPrice)
		}

		total = total.Add(perUnit.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	return total.Round(2), nil
}
