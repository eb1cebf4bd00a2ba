package models

import (
	"testing"

	"github.com/angelmondragon/order-refunds/pkg/enums"
)

func TestOrderLineItemLookup(t *testing.T) {
	order := &Order{LineItems: []LineItem{{ID: 1, Qty: 2, SalePrice: 500}, {ID: 2, Qty: 1, SalePrice: 250}}}

	item, ok := order.LineItem(2)
	if !ok || item.Subtotal() != 250 {
		t.Fatalf("unexpected line item %+v ok=%v", item, ok)
	}
	if _, ok := order.LineItem(3); ok {
		t.Fatalf("expected missing line item")
	}
	var nilOrder *Order
	if _, ok := nilOrder.LineItem(1); ok {
		t.Fatalf("nil order should not resolve line items")
	}
}

func TestTransactionHelpers(t *testing.T) {
	parent := int64(5)
	tx := Transaction{Type: enums.TransactionCapture, Status: enums.TransactionStatusSuccess, ParentID: &parent}
	if !tx.MovesFunds() || !tx.IsSuccessful() {
		t.Fatalf("expected successful capture to move funds")
	}
	if tx.ParentIDValue() != 5 {
		t.Fatalf("unexpected parent id %d", tx.ParentIDValue())
	}
	if (Transaction{Type: enums.TransactionAuthorize}).MovesFunds() {
		t.Fatalf("authorize transactions do not move funds")
	}
}

func TestAdjustmentScope(t *testing.T) {
	lineItemID := int64(9)
	taxable := enums.TaxablePrice
	adj := OrderAdjustment{LineItemID: &lineItemID, Taxable: &taxable}
	if !adj.IsLineItemAdjustment() || adj.TaxableTarget() != enums.TaxablePrice {
		t.Fatalf("unexpected adjustment scope %+v", adj)
	}
	if (OrderAdjustment{}).TaxableTarget() != "" {
		t.Fatalf("expected empty taxable target")
	}
}
