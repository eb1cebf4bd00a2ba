package models

import "time"

// LineItem captures a purchased item on an order. SalePrice is the unit price
// in minor units after sale pricing, before adjustments.
type LineItem struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID       int64     `gorm:"column:order_id;not null;index"`
	PurchasableID *int64    `gorm:"column:purchasable_id;index"`
	Description   string    `gorm:"column:description;not null;default:''"`
	SKU           string    `gorm:"column:sku;not null;default:''"`
	Qty           int       `gorm:"column:qty;not null"`
	SalePrice     int64     `gorm:"column:sale_price;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (LineItem) TableName() string { return "order_line_items" }

// Subtotal is the sale price times the quantity.
func (l LineItem) Subtotal() int64 {
	return l.SalePrice * int64(l.Qty)
}
