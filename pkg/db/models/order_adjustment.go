package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/order-refunds/pkg/enums"
)

// OrderAdjustment is a discount, tax or shipping amount applied to an order or
// one of its line items (LineItemID set).
type OrderAdjustment struct {
	ID          int64                `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID     int64                `gorm:"column:order_id;not null;index"`
	LineItemID  *int64               `gorm:"column:line_item_id;index"`
	Type        enums.AdjustmentType `gorm:"column:type;type:text;not null"`
	Name        string               `gorm:"column:name;not null;default:''"`
	Description string               `gorm:"column:description;not null;default:''"`
	Amount      int64                `gorm:"column:amount;not null"`
	Included    bool                 `gorm:"column:included;not null;default:false"`
	Taxable     *enums.TaxableTarget `gorm:"column:taxable;type:text"`
	Rate        decimal.Decimal      `gorm:"column:rate;type:numeric(10,6);not null;default:0"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
}

// TaxableTarget returns the taxable target or an empty value when unset.
func (a OrderAdjustment) TaxableTarget() enums.TaxableTarget {
	if a.Taxable == nil {
		return ""
	}
	return *a.Taxable
}

// IsLineItemAdjustment reports whether the adjustment is scoped to a line item.
func (a OrderAdjustment) IsLineItemAdjustment() bool {
	return a.LineItemID != nil && *a.LineItemID > 0
}
