package models

import (
	"time"

	"github.com/angelmondragon/order-refunds/pkg/enums"
)

// Transaction is a payment gateway operation recorded against an order.
// Refund transactions point at the transaction they refund through ParentID.
type Transaction struct {
	ID        int64                    `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID   int64                    `gorm:"column:order_id;not null;index"`
	ParentID  *int64                   `gorm:"column:parent_id;index"`
	Type      enums.TransactionType    `gorm:"column:type;type:text;not null"`
	Status    enums.TransactionStatus  `gorm:"column:status;type:text;not null"`
	Gateway   enums.TransactionGateway `gorm:"column:gateway;type:text;not null;default:'manual'"`
	Reference string                   `gorm:"column:reference;not null;default:''"`
	Amount    int64                    `gorm:"column:amount;not null"`
	Currency  enums.Currency           `gorm:"column:currency;type:text;not null"`
	Message   string                   `gorm:"column:message;not null;default:''"`
	Note      string                   `gorm:"column:note;not null;default:''"`
	CreatedAt time.Time                `gorm:"column:date_created;autoCreateTime"`
	UpdatedAt time.Time                `gorm:"column:date_updated;autoUpdateTime"`
}

// ParentIDValue returns the parent id or zero.
func (t Transaction) ParentIDValue() int64 {
	if t.ParentID == nil {
		return 0
	}
	return *t.ParentID
}

// IsSuccessful reports whether the gateway accepted the transaction.
func (t Transaction) IsSuccessful() bool {
	return t.Status == enums.TransactionStatusSuccess
}

// MovesFunds reports whether the transaction captured money that can be
// refunded later.
func (t Transaction) MovesFunds() bool {
	return t.Type == enums.TransactionPurchase || t.Type == enums.TransactionCapture
}
