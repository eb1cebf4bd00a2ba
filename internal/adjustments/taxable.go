package adjustments

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/order-refunds/pkg/db/models"
	"github.com/angelmondragon/order-refunds/pkg/enums"
)

// TaxableBaseForLineItem sums the discount and shipping amounts scoped to the
// line item that belong to the given taxable target. Price counts discounts,
// shipping counts shipping, anything else counts both.
func TaxableBaseForLineItem(adjustments []models.OrderAdjustment, target enums.TaxableTarget, lineItemID int64) int64 {
	if lineItemID <= 0 {
		return 0
	}

	var discount, shipping int64
	for _, adj := range adjustments {
		if adj.LineItemID == nil || *adj.LineItemID != lineItemID {
			continue
		}
		switch adj.Type {
		case enums.AdjustmentDiscount:
			discount += adj.Amount
		case enums.AdjustmentShipping:
			shipping += adj.Amount
		}
	}

	switch target {
	case enums.TaxablePrice:
		return discount
	case enums.TaxableShipping:
		return shipping
	default:
		return discount + shipping
	}
}

// TaxableBaseForOrder returns the non-included adjustments minus every tax and
// minus the included taxes once more, so order level taxes are recomputed on a
// tax exclusive base.
func TaxableBaseForOrder(adjustments []models.OrderAdjustment) int64 {
	var nonIncluded, tax, includedTax int64
	for _, adj := range adjustments {
		isTax := adj.Type == enums.AdjustmentTax
		if !adj.Included {
			nonIncluded += adj.Amount
		}
		if isTax {
			tax += adj.Amount
			if adj.Included {
				includedTax += adj.Amount
			}
		}
	}
	return nonIncluded - (tax + includedTax)
}

// RecomputeTax derives the tax on taxableAmount at rate. Included taxes are
// extracted from the amount (t - t/(1+r)); otherwise the tax is added on top
// (t*r). The result is rounded to minor units.
func RecomputeTax(taxableAmount int64, rate decimal.Decimal, included bool) int64 {
	base := decimal.NewFromInt(taxableAmount)
	if included {
		divisor := decimal.NewFromInt(1).Add(rate)
		if divisor.IsZero() {
			return 0
		}
		return base.Sub(base.Div(divisor)).Round(0).IntPart()
	}
	return base.Mul(rate).Round(0).IntPart()
}
