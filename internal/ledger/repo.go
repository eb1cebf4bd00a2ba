package ledger

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/order-refunds/pkg/db/models"
)

// Repository is append-only: ledger rows are never updated or deleted.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, event *models.LedgerEvent) error
	ForOrder(ctx context.Context, orderID int64) ([]models.LedgerEvent, error)
	SumForRefund(ctx context.Context, refundID int64) (int64, error)
	SumForOrder(ctx context.Context, orderID int64) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{db: tx}
}

func (r *gormRepository) Append(ctx context.Context, event *models.LedgerEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *gormRepository) ForOrder(ctx context.Context, orderID int64) ([]models.LedgerEvent, error) {
	var events []models.LedgerEvent
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&events).Error
	return events, err
}

func (r *gormRepository) SumForRefund(ctx context.Context, refundID int64) (int64, error) {
	return r.sum(ctx, "refund_id = ?", refundID)
}

func (r *gormRepository) SumForOrder(ctx context.Context, orderID int64) (int64, error) {
	return r.sum(ctx, "order_id = ?", orderID)
}

func (r *gormRepository) sum(ctx context.Context, where string, id int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEvent{}).
		Where(where, id).
		Select("COALESCE(SUM(amount_minor), 0)").
		Scan(&total).Error
	return total, err
}
