// Package ledger keeps an append-only record of refunded money per order.
// Entries for one refund sum to that refund's current total, so revisions
// post only the difference.
package ledger

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"github.com/angelmondragon/order-refunds/pkg/db/models"
	"github.com/angelmondragon/order-refunds/pkg/enums"
	pkgerrors "github.com/angelmondragon/order-refunds/pkg/errors"
)

type Service interface {
	WithTx(tx *gorm.DB) Service
	Record(ctx context.Context, entry Entry) (*models.LedgerEvent, error)
	History(ctx context.Context, orderID int64) ([]models.LedgerEvent, error)
	NetRefunded(ctx context.Context, orderID int64) (int64, error)
}

// Entry describes a refund save. TotalMinor is the refund's full total
// after the save, not the change.
type Entry struct {
	OrderID       int64
	RefundID      int64
	TransactionID int64
	ActorID       string
	Revision      bool
	TotalMinor    int64
	Currency      enums.Currency
	Metadata      json.RawMessage
}

func (e Entry) validate() error {
	missing := map[string]bool{
		"orderId":       e.OrderID <= 0,
		"refundId":      e.RefundID <= 0,
		"transactionId": e.TransactionID <= 0,
		"currency":      !e.Currency.IsValid(),
	}
	fields := map[string]string{}
	for field, bad := range missing {
		if bad {
			fields[field] = "required"
		}
	}
	if e.TotalMinor < 0 {
		fields["totalMinor"] = "must not be negative"
	}
	if len(fields) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid ledger entry").WithDetails(fields)
	}
	return nil
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) Record(ctx context.Context, entry Entry) (*models.LedgerEvent, error) {
	if err := entry.validate(); err != nil {
		return nil, err
	}

	eventType := enums.LedgerEventTypeRefund
	amount := entry.TotalMinor
	if entry.Revision {
		posted, err := s.repo.SumForRefund(ctx, entry.RefundID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum ledger for refund")
		}
		eventType = enums.LedgerEventTypeRefundRevision
		amount -= posted
	}

	event := &models.LedgerEvent{
		OrderID:       entry.OrderID,
		RefundID:      entry.RefundID,
		TransactionID: entry.TransactionID,
		ActorID:       entry.ActorID,
		Type:          eventType,
		AmountMinor:   amount,
		Currency:      entry.Currency,
		Metadata:      entry.Metadata,
	}
	if err := s.repo.Append(ctx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append ledger event")
	}
	return event, nil
}

func (s *service) History(ctx context.Context, orderID int64) ([]models.LedgerEvent, error) {
	if orderID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	return s.repo.ForOrder(ctx, orderID)
}

// NetRefunded is the money refunded on the order according to the ledger.
func (s *service) NetRefunded(ctx context.Context, orderID int64) (int64, error) {
	if orderID <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	return s.repo.SumForOrder(ctx, orderID)
}
