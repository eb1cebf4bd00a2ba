package inventory

import (
	"context"
	"errors"
	"fmt"

	pkgerrors "github.com/angelmondragon/order-refunds/pkg/errors"
	"gorm.io/gorm"
)

// Service restocks refunded units.
type Service interface {
	WithTx(tx *gorm.DB) Service
	CanRestock(ctx context.Context, purchasableID *int64) (bool, error)
	IncrementStock(ctx context.Context, purchasableID int64, qty int) error
}

type service struct {
	repo Repository
}

// NewService wires an inventory service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx)}
}

// CanRestock is false for line items without a purchasable, for purchasables
// without a stock counter, and for unlimited stock.
func (s *service) CanRestock(ctx context.Context, purchasableID *int64) (bool, error) {
	if purchasableID == nil || *purchasableID <= 0 {
		return false, nil
	}
	item, err := s.repo.FindByPurchasable(ctx, *purchasableID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory item")
	}
	return item.CanRestock(), nil
}

func (s *service) IncrementStock(ctx context.Context, purchasableID int64, qty int) error {
	if qty <= 0 {
		return nil
	}
	affected, err := s.repo.IncrementStock(ctx, purchasableID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeRestockFailed, err, "increment stock")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeRestockFailed, "inventory item not restockable").
			WithDetails(map[string]any{"purchasable_id": purchasableID})
	}
	return nil
}
