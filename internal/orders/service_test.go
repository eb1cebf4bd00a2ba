package orders

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/angelmondragon/order-refunds/pkg/db/models"
	"github.com/angelmondragon/order-refunds/pkg/enums"
	pkgerrors "github.com/angelmondragon/order-refunds/pkg/errors"
)

type stubOrdersRepo struct {
	order        *models.Order
	transactions []models.Transaction
	refunded     map[int64]int64
	orderUpdates map[string]any
	findErr      error
	created      []*models.Transaction
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubOrdersRepo) FindOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.order == nil || s.order.ID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubOrdersRepo) FindTransaction(ctx context.Context, transactionID int64) (*models.Transaction, error) {
	for i := range s.transactions {
		if s.transactions[i].ID == transactionID {
			return &s.transactions[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrdersRepo) LockTransaction(ctx context.Context, transactionID int64) (*models.Transaction, error) {
	return s.FindTransaction(ctx, transactionID)
}

func (s *stubOrdersRepo) ListTransactions(ctx context.Context, orderID int64) ([]models.Transaction, error) {
	return s.transactions, nil
}

func (s *stubOrdersRepo) ListTransactionsByType(ctx context.Context, orderID int64, txType enums.TransactionType) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, row := range s.transactions {
		if row.Type == txType {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *stubOrdersRepo) SumRefunded(ctx context.Context, parentIDs []int64) (map[int64]int64, error) {
	out := map[int64]int64{}
	for _, id := range parentIDs {
		out[id] = s.refunded[id]
	}
	return out, nil
}

func (s *stubOrdersRepo) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	s.created = append(s.created, txn)
	return nil
}

func (s *stubOrdersRepo) UpdateOrder(ctx context.Context, orderID int64, updates map[string]any) error {
	s.orderUpdates = updates
	return nil
}

func TestNewServiceRequiresRepository(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Fatal("expected error when repository is nil")
	}
}

func TestGetOrderMapsNotFound(t *testing.T) {
	svc, _ := NewService(&stubOrdersRepo{})

	_, err := svc.GetOrder(context.Background(), 10)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	svc, _ = NewService(&stubOrdersRepo{findErr: errors.New("db down")})
	_, err = svc.GetOrder(context.Background(), 10)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}

	if _, err := svc.GetOrder(context.Background(), 0); pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for zero id, got %v", err)
	}
}

func TestCanRefund(t *testing.T) {
	repo := &stubOrdersRepo{refunded: map[int64]int64{1: 1000, 2: 400}}
	svc, _ := NewService(repo)
	ctx := context.Background()

	fullyRefunded := &models.Transaction{ID: 1, Type: enums.TransactionPurchase, Status: enums.TransactionStatusSuccess, Amount: 1000}
	partially := &models.Transaction{ID: 2, Type: enums.TransactionCapture, Status: enums.TransactionStatusSuccess, Amount: 1000}
	failed := &models.Transaction{ID: 3, Type: enums.TransactionPurchase, Status: enums.TransactionStatusFailed, Amount: 1000}
	authorize := &models.Transaction{ID: 4, Type: enums.TransactionAuthorize, Status: enums.TransactionStatusSuccess, Amount: 1000}

	cases := []struct {
		name string
		txn  *models.Transaction
		want bool
	}{
		{name: "fully refunded", txn: fullyRefunded, want: false},
		{name: "partially refunded", txn: partially, want: true},
		{name: "failed", txn: failed, want: false},
		{name: "authorize", txn: authorize, want: false},
		{name: "nil", txn: nil, want: false},
	}
	for _, tc := range cases {
		got, err := svc.CanRefund(ctx, tc.txn)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected %v got %v", tc.name, tc.want, got)
		}
	}

	remaining, err := svc.RefundableAmount(ctx, partially)
	if err != nil || remaining != 600 {
		t.Fatalf("expected 600 remaining, got %d err=%v", remaining, err)
	}
}

func TestRefundableTransactionsFiltersExhaustedAndNonCapturing(t *testing.T) {
	repo := &stubOrdersRepo{
		transactions: []models.Transaction{
			{ID: 1, Type: enums.TransactionPurchase, Status: enums.TransactionStatusSuccess, Amount: 1000},
			{ID: 2, Type: enums.TransactionPurchase, Status: enums.TransactionStatusSuccess, Amount: 500},
			{ID: 3, ParentID: int64Ptr(2), Type: enums.TransactionRefund, Status: enums.TransactionStatusSuccess, Amount: 500},
			{ID: 4, Type: enums.TransactionAuthorize, Status: enums.TransactionStatusSuccess, Amount: 900},
		},
		refunded: map[int64]int64{2: 500},
	}
	svc, _ := NewService(repo)

	refundable, err := svc.RefundableTransactions(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refundable) != 1 || refundable[0].ID != 1 {
		t.Fatalf("expected only transaction 1, got %+v", refundable)
	}

	refunds, err := svc.RefundTransactions(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refunds) != 1 || refunds[0].ID != 3 {
		t.Fatalf("expected refund transaction 3, got %+v", refunds)
	}
}

func TestUpdateOrderPaidInformationFullRefund(t *testing.T) {
	repo := &stubOrdersRepo{
		order: &models.Order{ID: 1, TotalPrice: 1000},
		transactions: []models.Transaction{
			{ID: 1, Type: enums.TransactionPurchase, Status: enums.TransactionStatusSuccess, Amount: 1000},
			{ID: 2, ParentID: int64Ptr(1), Type: enums.TransactionRefund, Status: enums.TransactionStatusSuccess, Amount: 1000},
			{ID: 3, ParentID: int64Ptr(1), Type: enums.TransactionRefund, Status: enums.TransactionStatusFailed, Amount: 1000},
		},
	}
	svc, _ := NewService(repo)

	info, err := svc.UpdateOrderPaidInformation(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.RefundStatus != enums.RefundStatusFull || info.TotalPaid != 0 || info.PaidStatus != enums.PaidStatusUnpaid {
		t.Fatalf("unexpected paid information %+v", info)
	}
	if repo.orderUpdates["refund_status"] != enums.RefundStatusFull {
		t.Fatalf("expected refund_status update, got %+v", repo.orderUpdates)
	}
	if _, ok := repo.orderUpdates["date_paid"]; !ok {
		t.Fatalf("expected date_paid to be stamped for a fully captured order")
	}
}
