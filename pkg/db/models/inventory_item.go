package models

import "time"

// InventoryItem tracks the stock counter for a purchasable.
type InventoryItem struct {
	PurchasableID     int64     `gorm:"column:purchasable_id;primaryKey;autoIncrement:false"`
	Stock             int       `gorm:"column:stock;not null;default:0"`
	HasUnlimitedStock bool      `gorm:"column:has_unlimited_stock;not null;default:false"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// CanRestock reports whether returned units should go back into stock.
func (i InventoryItem) CanRestock() bool {
	return !i.HasUnlimitedStock
}
