package inventory

import (
	"context"

	"github.com/angelmondragon/order-refunds/pkg/db/models"
	"gorm.io/gorm"
)

// Repository manages stock counters per purchasable.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByPurchasable(ctx context.Context, purchasableID int64) (*models.InventoryItem, error)
	IncrementStock(ctx context.Context, purchasableID int64, delta int) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByPurchasable(ctx context.Context, purchasableID int64) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := r.db.WithContext(ctx).Where("purchasable_id = ?", purchasableID).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// IncrementStock adds delta to the stock counter in a single statement and
// reports how many rows changed. Unlimited-stock items are left alone.
func (r *repository) IncrementStock(ctx context.Context, purchasableID int64, delta int) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE inventory_items
		SET stock = stock + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE purchasable_id = ? AND has_unlimited_stock = ?
	`, delta, purchasableID, false)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
