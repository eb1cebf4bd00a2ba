package models

import (
	"time"

	"github.com/angelmondragon/order-refunds/pkg/enums"
)

// Order is the commerce order refunds are computed against.
type Order struct {
	ID            int64              `gorm:"column:id;primaryKey;autoIncrement"`
	Number        string             `gorm:"column:number;not null;uniqueIndex"`
	Currency      enums.Currency     `gorm:"column:currency;type:text;not null"`
	TotalPrice    int64              `gorm:"column:total_price;not null;default:0"`
	TotalPaid     int64              `gorm:"column:total_paid;not null;default:0"`
	TotalRefunded int64              `gorm:"column:total_refunded;not null;default:0"`
	PaidStatus    enums.PaidStatus   `gorm:"column:paid_status;type:text;not null;default:'unpaid'"`
	RefundStatus  enums.RefundStatus `gorm:"column:refund_status;type:text;not null;default:'none'"`
	DatePaid      *time.Time         `gorm:"column:date_paid"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`

	LineItems   []LineItem        `gorm:"foreignKey:OrderID"`
	Adjustments []OrderAdjustment `gorm:"foreignKey:OrderID"`
}

// LineItem returns the order line item with the given id.
func (o *Order) LineItem(id int64) (*LineItem, bool) {
	if o == nil {
		return nil, false
	}
	for i := range o.LineItems {
		if o.LineItems[i].ID == id {
			return &o.LineItems[i], true
		}
	}
	return nil, false
}
