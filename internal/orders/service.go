package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/order-refunds/pkg/db/models"
	"github.com/angelmondragon/order-refunds/pkg/enums"
	pkgerrors "github.com/angelmondragon/order-refunds/pkg/errors"
	"gorm.io/gorm"
)

// Service exposes the order and transaction reads refunds depend on, plus the
// paid information bookkeeping run after money moves.
type Service interface {
	WithTx(tx *gorm.DB) Service
	GetOrder(ctx context.Context, orderID int64) (*models.Order, error)
	GetTransaction(ctx context.Context, transactionID int64) (*models.Transaction, error)
	LockTransaction(ctx context.Context, transactionID int64) (*models.Transaction, error)
	RefundableAmount(ctx context.Context, txn *models.Transaction) (int64, error)
	CanRefund(ctx context.Context, txn *models.Transaction) (bool, error)
	RefundTransactions(ctx context.Context, orderID int64) ([]models.Transaction, error)
	RefundableTransactions(ctx context.Context, orderID int64) ([]models.Transaction, error)
	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	UpdateOrderPaidInformation(ctx context.Context, orderID int64) (*PaidInformation, error)
}

// PaidInformation is the recomputed payment position of an order.
type PaidInformation struct {
	TotalPaid     int64
	TotalRefunded int64
	PaidStatus    enums.PaidStatus
	RefundStatus  enums.RefundStatus
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires an orders service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx), now: s.now}
}

func (s *service) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	if orderID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, mapLookupError(err, "order not found", "load order")
	}
	return order, nil
}

func (s *service) GetTransaction(ctx context.Context, transactionID int64) (*models.Transaction, error) {
	if transactionID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	txn, err := s.repo.FindTransaction(ctx, transactionID)
	if err != nil {
		return nil, mapLookupError(err, "transaction not found", "load transaction")
	}
	return txn, nil
}

func (s *service) LockTransaction(ctx context.Context, transactionID int64) (*models.Transaction, error) {
	if transactionID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	txn, err := s.repo.LockTransaction(ctx, transactionID)
	if err != nil {
		return nil, mapLookupError(err, "transaction not found", "lock transaction")
	}
	return txn, nil
}

// RefundableAmount is the transaction amount minus its successful refunds.
func (s *service) RefundableAmount(ctx context.Context, txn *models.Transaction) (int64, error) {
	if txn == nil {
		return 0, nil
	}
	refunded, err := s.repo.SumRefunded(ctx, []int64{txn.ID})
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum refunded amount")
	}
	remaining := txn.Amount - refunded[txn.ID]
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// CanRefund is true for successful purchase or capture transactions with a
// remaining refundable amount.
func (s *service) CanRefund(ctx context.Context, txn *models.Transaction) (bool, error) {
	if txn == nil || !txn.IsSuccessful() || !txn.MovesFunds() {
		return false, nil
	}
	remaining, err := s.RefundableAmount(ctx, txn)
	if err != nil {
		return false, err
	}
	return remaining > 0, nil
}

func (s *service) RefundTransactions(ctx context.Context, orderID int64) ([]models.Transaction, error) {
	rows, err := s.repo.ListTransactionsByType(ctx, orderID, enums.TransactionRefund)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list refund transactions")
	}
	return rows, nil
}

func (s *service) RefundableTransactions(ctx context.Context, orderID int64) ([]models.Transaction, error) {
	rows, err := s.repo.ListTransactions(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}

	candidates := make([]int64, 0, len(rows))
	for _, row := range rows {
		if row.IsSuccessful() && row.MovesFunds() {
			candidates = append(candidates, row.ID)
		}
	}
	refunded, err := s.repo.SumRefunded(ctx, candidates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum refunded amount")
	}

	out := make([]models.Transaction, 0, len(candidates))
	for _, row := range rows {
		if !row.IsSuccessful() || !row.MovesFunds() {
			continue
		}
		if row.Amount-refunded[row.ID] > 0 {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *service) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	if txn == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction is required")
	}
	if err := s.repo.CreateTransaction(ctx, txn); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transaction")
	}
	return nil
}

// UpdateOrderPaidInformation recomputes paid and refunded totals from the
// order's successful transactions and stores them on the order.
func (s *service) UpdateOrderPaidInformation(ctx context.Context, orderID int64) (*PaidInformation, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListTransactions(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}

	var captured, refunded int64
	for _, row := range rows {
		if !row.IsSuccessful() {
			continue
		}
		switch {
		case row.MovesFunds():
			captured += row.Amount
		case row.Type == enums.TransactionRefund:
			refunded += row.Amount
		}
	}

	info := &PaidInformation{
		TotalPaid:     captured - refunded,
		TotalRefunded: refunded,
		RefundStatus:  enums.RefundStatusFor(captured, refunded),
	}
	info.PaidStatus = enums.PaidStatusFor(order.TotalPrice, info.TotalPaid)

	updates := map[string]any{
		"total_paid":     info.TotalPaid,
		"total_refunded": info.TotalRefunded,
		"paid_status":    info.PaidStatus,
		"refund_status":  info.RefundStatus,
	}
	if order.DatePaid == nil && captured >= order.TotalPrice && captured > 0 {
		updates["date_paid"] = s.now().UTC()
	}
	if err := s.repo.UpdateOrder(ctx, orderID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order paid information")
	}
	return info, nil
}

func mapLookupError(err error, notFound, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
