package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/order-refunds/pkg/enums"
)

// LedgerEvent records an immutable money movement tied to an order.
type LedgerEvent struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       int64                 `gorm:"column:order_id;not null;index"`
	RefundID      int64                 `gorm:"column:refund_id;not null;index"`
	TransactionID int64                 `gorm:"column:transaction_id;not null"`
	ActorID       string                `gorm:"column:actor_id;not null;default:''"`
	Type          enums.LedgerEventType `gorm:"column:type;type:text;not null"`
	AmountMinor   int64                 `gorm:"column:amount_minor;not null"`
	Currency      enums.Currency        `gorm:"column:currency;type:text;not null"`
	Metadata      json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
}
