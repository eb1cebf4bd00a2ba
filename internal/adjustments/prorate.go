// Package adjustments scales order adjustments down to refunded quantities and
// derives the taxable bases used to recompute taxes on a partial refund.
package adjustments

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/order-refunds/pkg/db/models"
	"github.com/angelmondragon/order-refunds/pkg/enums"
	pkgerrors "github.com/angelmondragon/order-refunds/pkg/errors"
)

// Quantify returns a copy of a line item adjustment scaled to quantity units
// of its line item. It returns nil when quantity is zero or the line item is
// not among lineItems; the adjustment is dropped rather than zeroed.
func Quantify(adjustment models.OrderAdjustment, lineItems []models.LineItem, quantity int) (*models.OrderAdjustment, error) {
	if !adjustment.IsLineItemAdjustment() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment must apply to a line item")
	}
	if quantity == 0 {
		return nil, nil
	}

	var lineItem *models.LineItem
	for i := range lineItems {
		if lineItems[i].ID == *adjustment.LineItemID {
			lineItem = &lineItems[i]
			break
		}
	}
	if lineItem == nil || lineItem.Qty == 0 {
		return nil, nil
	}

	scaled := Clone(adjustment)
	scaled.Amount = Prorate(adjustment.Amount, quantity, lineItem.Qty)
	return &scaled, nil
}

// Prorate computes round(amount * part / whole) in minor units, rounding half
// away from zero.
func Prorate(amount int64, part, whole int) int64 {
	if whole == 0 {
		return 0
	}
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(int64(part))).
		Div(decimal.NewFromInt(int64(whole))).
		Round(0).
		IntPart()
}

// Clone copies an adjustment, including the pointed-to scope and taxable
// values, so the copy can be changed without touching the order.
func Clone(adjustment models.OrderAdjustment) models.OrderAdjustment {
	out := adjustment
	if adjustment.LineItemID != nil {
		id := *adjustment.LineItemID
		out.LineItemID = &id
	}
	if adjustment.Taxable != nil {
		taxable := *adjustment.Taxable
		out.Taxable = &taxable
	}
	return out
}

// WithTaxable returns a copy with its taxable target replaced.
func WithTaxable(adjustment models.OrderAdjustment, target enums.TaxableTarget) models.OrderAdjustment {
	out := Clone(adjustment)
	out.Taxable = &target
	return out
}
