package refunds

import (
	"github.com/angelmondragon/order-refunds/internal/adjustments"
	"github.com/angelmondragon/order-refunds/pkg/db/models"
	dbtypes "github.com/angelmondragon/order-refunds/pkg/db/types"
	"github.com/angelmondragon/order-refunds/pkg/enums"
)

// Calculate derives the refund of the selected line item quantities of order.
//
// Line item adjustments are prorated to the refunded quantity; order level
// adjustments are carried whole. Without shipping, every adjustment whose base
// involves shipping is left out and the price and shipping taxes are
// recomputed on the refunded price alone. With includesAllLineItems every line
// item is refunded at its full quantity and nothing is prorated.
func Calculate(order *models.Order, selection dbtypes.LineItemSelections, includeShipping, includesAllLineItems bool) (Computation, error) {
	if order == nil {
		return Computation{}, nil
	}

	refundQty := func(lineItemID int64) int {
		if includesAllLineItems {
			if li, ok := order.LineItem(lineItemID); ok {
				return li.Qty
			}
			return 0
		}
		if qty := selection.Qty(lineItemID); qty > 0 {
			return qty
		}
		return 0
	}

	lineItems := make([]RefundLineItem, 0, len(order.LineItems))
	subtotals := make(map[int64]int64, len(order.LineItems))
	var itemSubtotal int64
	for _, li := range order.LineItems {
		qty := refundQty(li.ID)
		if qty <= 0 {
			continue
		}
		item := RefundLineItem{
			LineItem: li,
			Qty:      qty,
			Restock:  selection[li.ID].Restock,
		}
		lineItems = append(lineItems, item)
		subtotals[li.ID] = item.Subtotal()
		itemSubtotal += item.Subtotal()
	}

	scoped := make([]models.OrderAdjustment, 0, len(order.Adjustments))
	for _, adj := range order.Adjustments {
		if !includeShipping && (adj.Type == enums.AdjustmentShipping || adj.TaxableTarget().DependsOnShipping()) {
			continue
		}
		if adj.IsLineItemAdjustment() && !includesAllLineItems {
			quantified, err := adjustments.Quantify(adj, order.LineItems, refundQty(*adj.LineItemID))
			if err != nil {
				return Computation{}, err
			}
			if quantified == nil {
				continue
			}
			scoped = append(scoped, *quantified)
			continue
		}
		scoped = append(scoped, adjustments.Clone(adj))
	}

	if !includeShipping {
		// line item taxes on price and shipping, recomputed on price only
		for _, adj := range order.Adjustments {
			if !adj.IsLineItemAdjustment() || adj.TaxableTarget() != enums.TaxablePriceAndShipping {
				continue
			}
			lineItemID := *adj.LineItemID
			if _, ok := order.LineItem(lineItemID); !ok {
				continue
			}
			subtotal, ok := subtotals[lineItemID]
			if !ok {
				continue
			}
			recomputed := adjustments.WithTaxable(adj, enums.TaxablePrice)
			taxable := subtotal + adjustments.TaxableBaseForLineItem(scoped, enums.TaxablePrice, lineItemID)
			recomputed.Amount = adjustments.RecomputeTax(taxable, adj.Rate, adj.Included)
			scoped = append(scoped, recomputed)
		}

		// order level taxes on the order total price
		for _, adj := range order.Adjustments {
			if adj.IsLineItemAdjustment() || adj.TaxableTarget() != enums.TaxableOrderTotalPrice {
				continue
			}
			recomputed := adjustments.Clone(adj)
			taxable := itemSubtotal + adjustments.TaxableBaseForOrder(scoped)
			recomputed.Amount = adjustments.RecomputeTax(taxable, adj.Rate, adj.Included)
			scoped = append(scoped, recomputed)
		}
	}

	return summarize(lineItems, scoped), nil
}

func summarize(lineItems []RefundLineItem, scoped []models.OrderAdjustment) Computation {
	comp := Computation{
		LineItems:   lineItems,
		Adjustments: scoped,
	}
	for i := range comp.LineItems {
		li := &comp.LineItems[i]
		comp.TotalQty += li.Qty
		comp.ItemSubtotal += li.Subtotal()
		for _, adj := range scoped {
			if adj.LineItemID != nil && *adj.LineItemID == li.LineItem.ID {
				li.Adjustments = append(li.Adjustments, adj)
			}
		}
	}
	for _, adj := range scoped {
		if !adj.Included {
			comp.AdjustmentsTotal += adj.Amount
		}
		switch adj.Type {
		case enums.AdjustmentShipping:
			comp.TotalShippingCost += adj.Amount
		case enums.AdjustmentTax:
			comp.TotalTax += adj.Amount
			if adj.Included {
				comp.TotalTaxIncluded += adj.Amount
			} else {
				comp.TotalTaxExcluded += adj.Amount
			}
		}
	}
	comp.Total = comp.ItemSubtotal + comp.AdjustmentsTotal
	return comp
}
