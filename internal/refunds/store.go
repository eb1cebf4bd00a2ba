package refunds

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/angelmondragon/order-refunds/internal/orders"
	"github.com/angelmondragon/order-refunds/pkg/db/models"
	pkgerrors "github.com/angelmondragon/order-refunds/pkg/errors"
)

// Store loads refund views with their order and transaction snapshots.
// Lookups are memoized per refund id and per order until Invalidate is
// called for the order. A store bound to a transaction never memoizes.
type Store struct {
	orders orders.Service
	repo   Repository

	memo    bool
	mu      sync.Mutex
	byID    map[int64]*Refund
	byOrder map[int64][]*Refund
}

// NewStore builds a memoizing store.
func NewStore(ordersSvc orders.Service, repo Repository) (*Store, error) {
	if ordersSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if repo == nil {
		return nil, fmt.Errorf("refunds repository required")
	}
	return &Store{
		orders:  ordersSvc,
		repo:    repo,
		memo:    true,
		byID:    map[int64]*Refund{},
		byOrder: map[int64][]*Refund{},
	}, nil
}

// WithTx returns a store reading through tx without memoization.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{
		orders: s.orders.WithTx(tx),
		repo:   s.repo.WithTx(tx),
	}
}

// GetByID returns a copy of the refund with the given id.
func (s *Store) GetByID(ctx context.Context, id int64) (*Refund, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id is required")
	}
	if ref, ok := s.cachedByID(id); ok {
		return ref.clone(), nil
	}

	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load refund")
	}
	ref := fromRecord(*rec)
	if ref.Transaction == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund transaction not found")
	}
	order, err := s.orders.GetOrder(ctx, ref.OrderID)
	if err != nil {
		return nil, err
	}
	ref.Order = order
	if err := s.attachParents(ctx, []*Refund{ref}); err != nil {
		return nil, err
	}

	s.remember(ref)
	return ref.clone(), nil
}

// GetForOrder returns copies of every refund recorded against the order's
// refund transactions, in transaction date order.
func (s *Store) GetForOrder(ctx context.Context, orderID int64) ([]*Refund, error) {
	if cached, ok := s.cachedForOrder(orderID); ok {
		return cloneAll(cached), nil
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	txns, err := s.orders.RefundTransactions(ctx, orderID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(txns))
	for _, txn := range txns {
		ids = append(ids, txn.ID)
	}
	recs, err := s.repo.FindByTransactionIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list refunds")
	}
	byTxn := make(map[int64]models.Refund, len(recs))
	for _, rec := range recs {
		byTxn[rec.TransactionID] = rec
	}

	out := make([]*Refund, 0, len(recs))
	for _, txn := range txns {
		rec, ok := byTxn[txn.ID]
		if !ok {
			continue
		}
		ref := fromRecord(rec)
		if ref.Transaction == nil {
			t := txn
			ref.Transaction = &t
			ref.OrderID = t.OrderID
			ref.ParentTransactionID = t.ParentIDValue()
		}
		ref.Order = order
		out = append(out, ref)
	}
	if err := s.attachParents(ctx, out); err != nil {
		return nil, err
	}

	s.rememberOrder(orderID, out)
	return cloneAll(out), nil
}

// RefundableLineItemQuantities returns, per order line item, the quantity
// not yet refunded by the order's other refunds.
func (s *Store) RefundableLineItemQuantities(ctx context.Context, order *models.Order, excludeRefundID int64) (map[int64]int, error) {
	if order == nil {
		return map[int64]int{}, nil
	}
	existing, err := s.GetForOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return refundableQuantities(order, existing, excludeRefundID), nil
}

// CanRefundShipping reports whether none of the order's other refunds
// already refunded shipping.
func (s *Store) CanRefundShipping(ctx context.Context, orderID, excludeRefundID int64) (bool, error) {
	existing, err := s.GetForOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	return canRefundShipping(existing, excludeRefundID), nil
}

// Invalidate drops memoized refunds of the order.
func (s *Store) Invalidate(orderID int64) {
	if !s.memo {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byOrder, orderID)
	for id, ref := range s.byID {
		if ref.OrderID == orderID {
			delete(s.byID, id)
		}
	}
}

func (s *Store) attachParents(ctx context.Context, refs []*Refund) error {
	parents := map[int64]*models.Transaction{}
	for _, ref := range refs {
		id := ref.ParentTransactionID
		if id <= 0 {
			continue
		}
		if _, ok := parents[id]; !ok {
			parent, err := s.orders.GetTransaction(ctx, id)
			if err != nil {
				if !isNotFound(err) {
					return err
				}
				parent = nil
			}
			parents[id] = parent
		}
		ref.ParentTransaction = parents[id]
	}
	return nil
}

func (s *Store) cachedByID(id int64) (*Refund, bool) {
	if !s.memo {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.byID[id]
	return ref, ok
}

func (s *Store) cachedForOrder(orderID int64) ([]*Refund, bool) {
	if !s.memo {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	refs, ok := s.byOrder[orderID]
	return refs, ok
}

func (s *Store) remember(ref *Refund) {
	if !s.memo {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[ref.ID] = ref
}

func (s *Store) rememberOrder(orderID int64, refs []*Refund) {
	if !s.memo {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byOrder[orderID] = refs
	for _, ref := range refs {
		s.byID[ref.ID] = ref
	}
}

func isNotFound(err error) bool {
	typed := pkgerrors.As(err)
	return typed != nil && typed.Code() == pkgerrors.CodeNotFound
}

func cloneAll(refs []*Refund) []*Refund {
	out := make([]*Refund, len(refs))
	for i, ref := range refs {
		out[i] = ref.clone()
	}
	return out
}

// counts reports whether a stored refund still holds its line items and
// shipping, which is the case unless its transaction failed.
func counts(ref *Refund, excludeRefundID int64) bool {
	if ref.ID == excludeRefundID && excludeRefundID > 0 {
		return false
	}
	return ref.Transaction == nil || ref.Transaction.IsSuccessful()
}

func refundableQuantities(order *models.Order, existing []*Refund, excludeRefundID int64) map[int64]int {
	refunded := map[int64]int{}
	for _, ref := range existing {
		if !counts(ref, excludeRefundID) {
			continue
		}
		for id, sel := range ref.LineItemsData {
			if sel.Qty > 0 {
				refunded[id] += sel.Qty
			}
		}
	}

	out := make(map[int64]int, len(order.LineItems))
	for _, li := range order.LineItems {
		if remaining := li.Qty - refunded[li.ID]; remaining > 0 {
			out[li.ID] = remaining
		}
	}
	return out
}

func canRefundShipping(existing []*Refund, excludeRefundID int64) bool {
	for _, ref := range existing {
		if counts(ref, excludeRefundID) && ref.IncludesShipping {
			return false
		}
	}
	return true
}
