// Package refunds computes partial refunds for orders and persists them
// against gateway refund transactions.
package refunds

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/order-refunds/pkg/db/models"
	dbtypes "github.com/angelmondragon/order-refunds/pkg/db/types"
)

// Refund is the in-memory view of a refund. Its durable attributes mirror the
// refunds table; everything monetary is derived by Compute from the order
// snapshot on every call.
type Refund struct {
	ID                   int64
	UID                  uuid.UUID
	TransactionID        int64
	OrderID              int64
	ParentTransactionID  int64
	Reference            string
	LineItemsData        dbtypes.LineItemSelections
	IncludesShipping     bool
	IncludesAllLineItems bool
	RestockedQuantities  dbtypes.Quantities
	IsRevisable          bool
	Note                 string
	DateCreated          time.Time
	DateUpdated          time.Time

	Order             *models.Order
	Transaction       *models.Transaction
	ParentTransaction *models.Transaction
}

// IsNew reports whether the refund has not been persisted yet.
func (r *Refund) IsNew() bool {
	return r.ID == 0
}

// Compute derives the scoped line items, adjustments and totals.
func (r *Refund) Compute() (Computation, error) {
	comp, err := Calculate(r.Order, r.LineItemsData, r.IncludesShipping, r.IncludesAllLineItems)
	if err != nil {
		return Computation{}, err
	}
	for i := range comp.LineItems {
		comp.LineItems[i].RestockedQty = r.RestockedQuantities[comp.LineItems[i].LineItem.ID]
		comp.LineItems[i].Refund = r
	}
	return comp, nil
}

// TransactionDate is the creation date of the refund transaction, zero before
// one exists.
func (r *Refund) TransactionDate() time.Time {
	if r.Transaction == nil {
		return time.Time{}
	}
	return r.Transaction.CreatedAt
}

// clone copies the durable attributes so a revision can be prepared without
// touching the cached view.
func (r *Refund) clone() *Refund {
	out := *r
	out.LineItemsData = r.LineItemsData.Clone()
	out.RestockedQuantities = r.RestockedQuantities.Clone()
	return &out
}

// record maps the view onto its durable row.
func (r *Refund) record() *models.Refund {
	return &models.Refund{
		ID:                  r.ID,
		UID:                 r.UID,
		TransactionID:       r.TransactionID,
		Reference:           r.Reference,
		LineItemsData:       r.LineItemsData.Clone(),
		IncludesShipping:    r.IncludesShipping,
		RestockedQuantities: r.RestockedQuantities.Clone(),
		IsRevisable:         r.IsRevisable,
		Note:                r.Note,
		DateCreated:         r.DateCreated,
	}
}

// fromRecord builds a view from a stored row. Order and transaction snapshots
// are attached by the caller.
func fromRecord(rec models.Refund) *Refund {
	ref := &Refund{
		ID:                  rec.ID,
		UID:                 rec.UID,
		TransactionID:       rec.TransactionID,
		Reference:           rec.Reference,
		LineItemsData:       rec.LineItemsData.Clone(),
		IncludesShipping:    rec.IncludesShipping,
		RestockedQuantities: rec.RestockedQuantities.Clone(),
		IsRevisable:         rec.IsRevisable,
		Note:                rec.Note,
		DateCreated:         rec.DateCreated,
		DateUpdated:         rec.DateUpdated,
	}
	if rec.Transaction != nil {
		txn := *rec.Transaction
		ref.Transaction = &txn
		ref.OrderID = txn.OrderID
		ref.ParentTransactionID = txn.ParentIDValue()
	}
	return ref
}

// RefundLineItem is an order line item scoped to a refund. It wraps a copy of
// the order line item and carries the refund specific quantities.
type RefundLineItem struct {
	LineItem     models.LineItem
	Qty          int
	Restock      bool
	RestockedQty int
	Adjustments  []models.OrderAdjustment
	Refund       *Refund
}

// Subtotal is the sale price times the refunded quantity.
func (li RefundLineItem) Subtotal() int64 {
	return li.LineItem.SalePrice * int64(li.Qty)
}

// RestockableQty is the refunded quantity not yet returned to stock.
func (li RefundLineItem) RestockableQty() int {
	if n := li.Qty - li.RestockedQty; n > 0 {
		return n
	}
	return 0
}

// QtyToRestock is the quantity a save should return to stock. Purchasables
// that cannot be restocked yield zero.
func (li RefundLineItem) QtyToRestock(canRestock bool) int {
	if !li.Restock || !canRestock {
		return 0
	}
	return li.RestockableQty()
}

// Computation is the derived monetary breakdown of a refund. It is built
// fresh by Calculate and never updated in place.
type Computation struct {
	LineItems         []RefundLineItem
	Adjustments       []models.OrderAdjustment
	TotalQty          int
	ItemSubtotal      int64
	AdjustmentsTotal  int64
	TotalShippingCost int64
	TotalTax          int64
	TotalTaxIncluded  int64
	TotalTaxExcluded  int64
	Total             int64
}

// OrderAdjustments returns the scoped adjustments that apply to the whole
// order.
func (c Computation) OrderAdjustments() []models.OrderAdjustment {
	out := make([]models.OrderAdjustment, 0, len(c.Adjustments))
	for _, adj := range c.Adjustments {
		if !adj.IsLineItemAdjustment() {
			out = append(out, adj)
		}
	}
	return out
}

// LineItem returns the scoped line item for an order line item id.
func (c Computation) LineItem(lineItemID int64) (RefundLineItem, bool) {
	for _, li := range c.LineItems {
		if li.LineItem.ID == lineItemID {
			return li, true
		}
	}
	return RefundLineItem{}, false
}
