package payloads

import (
	"time"

	"github.com/angelmondragon/order-refunds/pkg/enums"
	"github.com/google/uuid"
)

// RefundSavedEvent is emitted when a refund is created or revised.
type RefundSavedEvent struct {
	RefundID            int64     `json:"refund_id"`
	RefundUID           uuid.UUID `json:"refund_uid"`
	Reference           string    `json:"reference"`
	OrderID             int64     `json:"order_id"`
	TransactionID       int64     `json:"transaction_id"`
	ParentTransactionID int64     `json:"parent_transaction_id"`
	Total               int64     `json:"total"`
	Currency            string    `json:"currency"`
	TotalQty            int       `json:"total_qty"`
	IncludesShipping    bool      `json:"includes_shipping"`
	IsNew               bool      `json:"is_new"`
	IsRevisable         bool      `json:"is_revisable"`
	SavedAt             time.Time `json:"saved_at"`
}

// RefundItemRestockedEvent reports units of a line item returned to stock.
type RefundItemRestockedEvent struct {
	RefundUID     uuid.UUID `json:"refund_uid"`
	Reference     string    `json:"reference"`
	OrderID       int64     `json:"order_id"`
	LineItemID    int64     `json:"line_item_id"`
	PurchasableID int64     `json:"purchasable_id"`
	Qty           int       `json:"qty"`
}

// RefundTransactionCreatedEvent reports the gateway refund behind a refund.
type RefundTransactionCreatedEvent struct {
	RefundUID           uuid.UUID                `json:"refund_uid"`
	Reference           string                   `json:"reference"`
	OrderID             int64                    `json:"order_id"`
	TransactionID       int64                    `json:"transaction_id"`
	ParentTransactionID int64                    `json:"parent_transaction_id"`
	Amount              int64                    `json:"amount"`
	Currency            string                   `json:"currency"`
	Gateway             enums.TransactionGateway `json:"gateway"`
	Status              enums.TransactionStatus  `json:"status"`
	GatewayReference    string                   `json:"gateway_reference,omitempty"`
}
