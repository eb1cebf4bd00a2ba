package orders

import (
	"context"

	dbpkg "github.com/angelmondragon/order-refunds/pkg/db"
	"github.com/angelmondragon/order-refunds/pkg/db/models"
	"github.com/angelmondragon/order-refunds/pkg/enums"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Adjustments", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindTransaction(ctx context.Context, transactionID int64) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).Where("id = ?", transactionID).First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// LockTransaction reads the transaction with a row lock held until the
// surrounding transaction ends.
func (r *repository) LockTransaction(ctx context.Context, transactionID int64) (*models.Transaction, error) {
	var txn models.Transaction
	err := dbpkg.ForUpdate(r.db.WithContext(ctx)).
		Where("id = ?", transactionID).
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) ListTransactions(ctx context.Context, orderID int64) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("date_created ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListTransactionsByType(ctx context.Context, orderID int64, txType enums.TransactionType) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND type = ?", orderID, txType).
		Order("date_created ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

type refundedRow struct {
	ParentID int64
	Total    int64
}

// SumRefunded totals successful refund children per parent transaction.
func (r *repository) SumRefunded(ctx context.Context, parentIDs []int64) (map[int64]int64, error) {
	out := make(map[int64]int64, len(parentIDs))
	if len(parentIDs) == 0 {
		return out, nil
	}
	var rows []refundedRow
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("parent_id, COALESCE(SUM(amount), 0) AS total").
		Where("parent_id IN ? AND type = ? AND status = ?", parentIDs, enums.TransactionRefund, enums.TransactionStatusSuccess).
		Group("parent_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ParentID] = row.Total
	}
	return out, nil
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) UpdateOrder(ctx context.Context, orderID int64, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}
