package refunds

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/order-refunds/pkg/db/models"
	dbtypes "github.com/angelmondragon/order-refunds/pkg/db/types"
	"github.com/angelmondragon/order-refunds/pkg/enums"
)

// RefundDTO is the API representation of a refund and its totals.
type RefundDTO struct {
	ID                   int64                      `json:"id,omitempty"`
	UID                  *uuid.UUID                 `json:"uid,omitempty"`
	Reference            string                     `json:"reference"`
	OrderID              int64                      `json:"orderId"`
	TransactionID        int64                      `json:"transactionId,omitempty"`
	ParentTransactionID  int64                      `json:"parentTransactionId,omitempty"`
	TransactionDate      *time.Time                 `json:"transactionDate,omitempty"`
	Currency             string                     `json:"currency"`
	LineItemsData        dbtypes.LineItemSelections `json:"lineItemsData"`
	IncludesShipping     bool                       `json:"includesShipping"`
	IncludesAllLineItems bool                       `json:"includesAllLineItems"`
	RestockedQuantities  dbtypes.Quantities         `json:"restockedQuantities"`
	IsRevisable          bool                       `json:"isRevisable"`
	Note                 string                     `json:"note"`
	LineItems            []RefundLineItemDTO        `json:"lineItems"`
	Adjustments          []AdjustmentDTO            `json:"adjustments"`
	TotalQty             int                        `json:"totalQty"`
	ItemSubtotal         int64                      `json:"itemSubtotal"`
	AdjustmentsTotal     int64                      `json:"adjustmentsTotal"`
	TotalShippingCost    int64                      `json:"totalShippingCost"`
	TotalTax             int64                      `json:"totalTax"`
	TotalTaxIncluded     int64                      `json:"totalTaxIncluded"`
	TotalTaxExcluded     int64                      `json:"totalTaxExcluded"`
	Total                int64                      `json:"total"`
	DateCreated          *time.Time                 `json:"dateCreated,omitempty"`
	DateUpdated          *time.Time                 `json:"dateUpdated,omitempty"`
}

// RefundLineItemDTO is one refunded order line item.
type RefundLineItemDTO struct {
	LineItemID     int64           `json:"lineItemId"`
	PurchasableID  *int64          `json:"purchasableId,omitempty"`
	Description    string          `json:"description"`
	SKU            string          `json:"sku,omitempty"`
	SalePrice      int64           `json:"salePrice"`
	Qty            int             `json:"qty"`
	Restock        bool            `json:"restock"`
	RestockedQty   int             `json:"restockedQty"`
	RestockableQty int             `json:"restockableQty"`
	Subtotal       int64           `json:"subtotal"`
	Adjustments    []AdjustmentDTO `json:"adjustments,omitempty"`
}

// AdjustmentDTO is a refund scoped order adjustment.
type AdjustmentDTO struct {
	ID         int64                `json:"id"`
	LineItemID *int64               `json:"lineItemId,omitempty"`
	Type       enums.AdjustmentType `json:"type"`
	Name       string               `json:"name"`
	Amount     int64                `json:"amount"`
	Included   bool                 `json:"included"`
	Taxable    *enums.TaxableTarget `json:"taxable,omitempty"`
	Rate       decimal.Decimal      `json:"rate"`
}

// CalculateResponse is the API representation of a dry run.
type CalculateResponse struct {
	Refund *RefundDTO          `json:"refund,omitempty"`
	Valid  bool                `json:"valid"`
	Errors map[string][]string `json:"errors,omitempty"`
}

// NewRefundDTO maps a refund view and its computation.
func NewRefundDTO(ref *Refund, comp Computation) RefundDTO {
	dto := RefundDTO{
		ID:                   ref.ID,
		Reference:            ref.Reference,
		OrderID:              ref.OrderID,
		TransactionID:        ref.TransactionID,
		ParentTransactionID:  ref.ParentTransactionID,
		Currency:             currencyOf(ref),
		LineItemsData:        ref.LineItemsData.Clone(),
		IncludesShipping:     ref.IncludesShipping,
		IncludesAllLineItems: ref.IncludesAllLineItems,
		RestockedQuantities:  ref.RestockedQuantities.Clone(),
		IsRevisable:          ref.IsRevisable,
		Note:                 ref.Note,
		LineItems:            make([]RefundLineItemDTO, 0, len(comp.LineItems)),
		Adjustments:          adjustmentDTOs(comp.Adjustments),
		TotalQty:             comp.TotalQty,
		ItemSubtotal:         comp.ItemSubtotal,
		AdjustmentsTotal:     comp.AdjustmentsTotal,
		TotalShippingCost:    comp.TotalShippingCost,
		TotalTax:             comp.TotalTax,
		TotalTaxIncluded:     comp.TotalTaxIncluded,
		TotalTaxExcluded:     comp.TotalTaxExcluded,
		Total:                comp.Total,
	}
	if ref.UID != uuid.Nil {
		uid := ref.UID
		dto.UID = &uid
	}
	if date := ref.TransactionDate(); !date.IsZero() {
		dto.TransactionDate = &date
	}
	if !ref.IsNew() {
		created, updated := ref.DateCreated, ref.DateUpdated
		dto.DateCreated = &created
		dto.DateUpdated = &updated
	}
	for _, li := range comp.LineItems {
		dto.LineItems = append(dto.LineItems, RefundLineItemDTO{
			LineItemID:     li.LineItem.ID,
			PurchasableID:  li.LineItem.PurchasableID,
			Description:    li.LineItem.Description,
			SKU:            li.LineItem.SKU,
			SalePrice:      li.LineItem.SalePrice,
			Qty:            li.Qty,
			Restock:        li.Restock,
			RestockedQty:   li.RestockedQty,
			RestockableQty: li.RestockableQty(),
			Subtotal:       li.Subtotal(),
			Adjustments:    adjustmentDTOs(li.Adjustments),
		})
	}
	return dto
}

// NewCalculateResponse maps a dry run result.
func NewCalculateResponse(res *CalculateResult) CalculateResponse {
	out := CalculateResponse{Valid: res.Valid()}
	if !res.Errors.Empty() {
		out.Errors = map[string][]string(res.Errors)
	}
	if res.Refund != nil {
		dto := NewRefundDTO(res.Refund, res.Computation)
		out.Refund = &dto
	}
	return out
}

func adjustmentDTOs(adjs []models.OrderAdjustment) []AdjustmentDTO {
	out := make([]AdjustmentDTO, 0, len(adjs))
	for _, adj := range adjs {
		out = append(out, AdjustmentDTO{
			ID:         adj.ID,
			LineItemID: adj.LineItemID,
			Type:       adj.Type,
			Name:       adj.Name,
			Amount:     adj.Amount,
			Included:   adj.Included,
			Taxable:    adj.Taxable,
			Rate:       adj.Rate,
		})
	}
	return out
}
