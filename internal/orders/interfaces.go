package orders

import (
	"context"

	"github.com/angelmondragon/order-refunds/pkg/db/models"
	"github.com/angelmondragon/order-refunds/pkg/enums"
	"gorm.io/gorm"
)

// Repository defines persistence operations for orders and their payment
// transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, orderID int64) (*models.Order, error)
	FindTransaction(ctx context.Context, transactionID int64) (*models.Transaction, error)
	LockTransaction(ctx context.Context, transactionID int64) (*models.Transaction, error)
	ListTransactions(ctx context.Context, orderID int64) ([]models.Transaction, error)
	ListTransactionsByType(ctx context.Context, orderID int64, txType enums.TransactionType) ([]models.Transaction, error)
	SumRefunded(ctx context.Context, parentIDs []int64) (map[int64]int64, error)
	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	UpdateOrder(ctx context.Context, orderID int64, updates map[string]any) error
}
