package refunds

import (
	"context"

	"github.com/angelmondragon/order-refunds/pkg/db/models"
	"github.com/angelmondragon/order-refunds/pkg/enums"
	"gorm.io/gorm"
)

// Repository persists refund records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id int64) (*models.Refund, error)
	FindByTransactionIDs(ctx context.Context, transactionIDs []int64) ([]models.Refund, error)
	Create(ctx context.Context, rec *models.Refund) error
	Update(ctx context.Context, rec *models.Refund) error
	ListRefundTransactionsWithoutRecord(ctx context.Context, limit int) ([]models.Transaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a refunds repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id int64) (*models.Refund, error) {
	var rec models.Refund
	err := r.db.WithContext(ctx).
		Preload("Transaction").
		Where("id = ?", id).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *repository) FindByTransactionIDs(ctx context.Context, transactionIDs []int64) ([]models.Refund, error) {
	if len(transactionIDs) == 0 {
		return nil, nil
	}
	var rows []models.Refund
	err := r.db.WithContext(ctx).
		Preload("Transaction").
		Where("transaction_id IN ?", transactionIDs).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) Create(ctx context.Context, rec *models.Refund) error {
	return r.db.WithContext(ctx).Omit("Transaction").Create(rec).Error
}

func (r *repository) Update(ctx context.Context, rec *models.Refund) error {
	return r.db.WithContext(ctx).Omit("Transaction").Save(rec).Error
}

// ListRefundTransactionsWithoutRecord returns refund transactions that have
// no refund record yet, oldest first.
func (r *repository) ListRefundTransactionsWithoutRecord(ctx context.Context, limit int) ([]models.Transaction, error) {
	var rows []models.Transaction
	q := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("type = ?", enums.TransactionRefund).
		Where("NOT EXISTS (SELECT 1 FROM refunds WHERE refunds.transaction_id = transactions.id)").
		Order("date_created ASC").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}
