package refunds

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/order-refunds/internal/gateway"
	"github.com/angelmondragon/order-refunds/internal/inventory"
	"github.com/angelmondragon/order-refunds/internal/ledger"
	"github.com/angelmondragon/order-refunds/internal/orders"
	dbpkg "github.com/angelmondragon/order-refunds/pkg/db"
	"github.com/angelmondragon/order-refunds/pkg/db/models"
	dbtypes "github.com/angelmondragon/order-refunds/pkg/db/types"
	"github.com/angelmondragon/order-refunds/pkg/enums"
	pkgerrors "github.com/angelmondragon/order-refunds/pkg/errors"
	"github.com/angelmondragon/order-refunds/pkg/logger"
	"github.com/angelmondragon/order-refunds/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type referenceGenerator interface {
	Generate(ctx context.Context, ref *Refund, comp Computation) (string, error)
}

type refundGateway interface {
	Refund(ctx context.Context, parent *models.Transaction, amount int64, note string) (*gateway.Result, error)
}

// Service calculates and persists refunds.
type Service interface {
	Calculate(ctx context.Context, req CalculateRequest) (*CalculateResult, error)
	Create(ctx context.Context, req CreateRequest) (*SavedRefund, error)
	Update(ctx context.Context, req UpdateRequest) (*SavedRefund, error)
	Get(ctx context.Context, id int64) (*SavedRefund, error)
	ListForOrder(ctx context.Context, orderID int64) ([]SavedRefund, error)
	RefundableQuantities(ctx context.Context, orderID int64) (map[int64]int, error)
	CanRefundShipping(ctx context.Context, orderID int64) (bool, error)
}

// CalculateResult is the outcome of a dry run. Refund is nil when the
// request itself was malformed.
type CalculateResult struct {
	Refund      *Refund
	Computation Computation
	Errors      FieldErrors
}

// Valid reports whether the refund could be saved as calculated.
func (r *CalculateResult) Valid() bool {
	return r != nil && r.Errors.Empty()
}

// SavedRefund is a persisted refund together with its derived totals.
type SavedRefund struct {
	Refund      *Refund
	Computation Computation
}

// ServiceParams lists the collaborators of the refund service.
type ServiceParams struct {
	Tx          txRunner
	Repo        Repository
	Store       *Store
	Orders      orders.Service
	Inventory   inventory.Service
	Ledger      ledger.Service
	Gateway     refundGateway
	References  referenceGenerator
	Observer    Observer
	Metrics     *metrics.RefundMetrics
	Logger      *logger.Logger
	DefaultNote string
}

type service struct {
	tx          txRunner
	repo        Repository
	store       *Store
	orders      orders.Service
	inventory   inventory.Service
	ledger      ledger.Service
	gateway     refundGateway
	references  referenceGenerator
	observer    Observer
	metrics     *metrics.RefundMetrics
	logg        *logger.Logger
	defaultNote string
	now         func() time.Time
}

// NewService builds the refund service.
func NewService(p ServiceParams) (Service, error) {
	if p.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if p.Repo == nil {
		return nil, fmt.Errorf("refunds repository required")
	}
	if p.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if p.Inventory == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if p.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if p.Gateway == nil {
		return nil, fmt.Errorf("refund gateway required")
	}
	if p.References == nil {
		return nil, fmt.Errorf("reference generator required")
	}
	if p.Store == nil {
		store, err := NewStore(p.Orders, p.Repo)
		if err != nil {
			return nil, err
		}
		p.Store = store
	}
	if p.Observer == nil {
		p.Observer = NopObserver{}
	}
	return &service{
		tx:          p.Tx,
		repo:        p.Repo,
		store:       p.Store,
		orders:      p.Orders,
		inventory:   p.Inventory,
		ledger:      p.Ledger,
		gateway:     p.Gateway,
		references:  p.References,
		observer:    p.Observer,
		metrics:     p.Metrics,
		logg:        p.Logger,
		defaultNote: p.DefaultNote,
		now:         time.Now,
	}, nil
}

// Calculate computes a refund without persisting anything. Rule violations
// are reported in the result; only lookups and storage failures are errors.
func (s *service) Calculate(ctx context.Context, req CalculateRequest) (*CalculateResult, error) {
	start := s.now()
	res, err := s.calculate(ctx, req)
	if err == nil {
		s.metrics.ObserveCalculate(s.now().Sub(start), res.Valid())
	}
	return res, err
}

func (s *service) calculate(ctx context.Context, req CalculateRequest) (*CalculateResult, error) {
	if errs := ValidateCalculateRequest(req); !errs.Empty() {
		return &CalculateResult{Errors: errs}, nil
	}

	errs := FieldErrors{}
	var ref *Refund
	if req.RefundID > 0 {
		existing, err := s.store.GetByID(ctx, req.RefundID)
		if err != nil {
			return nil, err
		}
		if existing.OrderID != req.OrderID {
			errs.Add("orderId", "does not match the refund's order")
		}
		ref = existing
		ref.LineItemsData = req.LineItemsData.selections()
		ref.IncludesShipping = req.IncludesShipping
		ref.IncludesAllLineItems = req.IncludesAllLineItems
		if req.Note != "" {
			ref.Note = req.Note
		}
	} else {
		ref = &Refund{
			OrderID:              req.OrderID,
			ParentTransactionID:  req.ParentTransactionID,
			TransactionID:        req.TransactionID,
			LineItemsData:        req.LineItemsData.selections(),
			IncludesShipping:     req.IncludesShipping,
			IncludesAllLineItems: req.IncludesAllLineItems,
			RestockedQuantities:  dbtypes.Quantities{},
			IsRevisable:          true,
			Note:                 req.Note,
		}
	}

	if err := s.hydrate(ctx, s.orders, ref); err != nil {
		return nil, err
	}
	comp, err := ref.Compute()
	if err != nil {
		return nil, err
	}
	vc, err := s.validationContext(ctx, s.orders, s.store, ref, req.Total)
	if err != nil {
		return nil, err
	}
	errs.Merge(ValidateRefund(ref, comp, vc))
	return &CalculateResult{Refund: ref, Computation: comp, Errors: errs}, nil
}

// Create persists a new refund, creating its gateway refund transaction when
// none is supplied.
func (s *service) Create(ctx context.Context, req CreateRequest) (*SavedRefund, error) {
	if errs := ValidateCreateRequest(req); !errs.Empty() {
		s.metrics.IncSave(metrics.OutcomeInvalid)
		return nil, errs.Err()
	}

	orderID := req.OrderID
	if orderID == 0 {
		parent, err := s.orders.GetTransaction(ctx, req.ParentTransactionID)
		if err != nil {
			return nil, err
		}
		orderID = parent.OrderID
	}

	note := req.Note
	if strings.TrimSpace(note) == "" {
		note = s.defaultNote
	}
	ref := &Refund{
		OrderID:              orderID,
		ParentTransactionID:  req.ParentTransactionID,
		TransactionID:        req.TransactionID,
		Reference:            req.Reference,
		LineItemsData:        req.LineItemsData.selections(),
		IncludesShipping:     req.IncludesShipping,
		IncludesAllLineItems: req.IncludesAllLineItems,
		RestockedQuantities:  dbtypes.Quantities{},
		IsRevisable:          req.IsRevisable,
		Note:                 note,
	}
	return s.save(ctx, ref, req.Total, req.ActorID)
}

// Update applies the single permitted revision of a refund.
func (s *service) Update(ctx context.Context, req UpdateRequest) (*SavedRefund, error) {
	if errs := ValidateUpdateRequest(req); !errs.Empty() {
		s.metrics.IncSave(metrics.OutcomeInvalid)
		return nil, errs.Err()
	}

	ref, err := s.store.GetByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if ref.TransactionID != req.TransactionID {
		s.metrics.IncSave(metrics.OutcomeInvalid)
		errs := FieldErrors{}
		errs.Add("transactionId", "does not match the refund transaction")
		return nil, errs.Err()
	}
	ref.Reference = req.Reference
	ref.LineItemsData = req.LineItemsData.selections()
	ref.IncludesShipping = req.IncludesShipping
	ref.IncludesAllLineItems = req.IncludesAllLineItems
	ref.Note = req.Note
	return s.save(ctx, ref, req.Total, req.ActorID)
}

func (s *service) Get(ctx context.Context, id int64) (*SavedRefund, error) {
	ref, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	comp, err := ref.Compute()
	if err != nil {
		return nil, err
	}
	return &SavedRefund{Refund: ref, Computation: comp}, nil
}

func (s *service) ListForOrder(ctx context.Context, orderID int64) ([]SavedRefund, error) {
	refs, err := s.store.GetForOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	out := make([]SavedRefund, 0, len(refs))
	for _, ref := range refs {
		comp, err := ref.Compute()
		if err != nil {
			return nil, err
		}
		out = append(out, SavedRefund{Refund: ref, Computation: comp})
	}
	return out, nil
}

func (s *service) RefundableQuantities(ctx context.Context, orderID int64) (map[int64]int, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.store.RefundableLineItemQuantities(ctx, order, 0)
}

func (s *service) CanRefundShipping(ctx context.Context, orderID int64) (bool, error) {
	return s.store.CanRefundShipping(ctx, orderID, 0)
}

// save runs the transactional sequence shared by Create and Update: lock the
// parent transaction, re-validate, notify BeforeSaveRefund, restock, create
// the gateway refund transaction when missing, refresh the order's paid
// information and write the record. Observers are notified around each step.
func (s *service) save(ctx context.Context, ref *Refund, requestedTotal *int64, actorID string) (*SavedRefund, error) {
	isNew := ref.IsNew()
	if !isNew && !ref.IsRevisable {
		s.metrics.IncSave(metrics.OutcomeNotRevisable)
		return nil, pkgerrors.New(pkgerrors.CodeNotRevisable, "refund can no longer be revised").
			WithDetails(map[string]any{"refund_id": ref.ID, "reference": ref.Reference})
	}
	if ref.UID == uuid.Nil {
		ref.UID = uuid.New()
	}
	if ref.DateCreated.IsZero() {
		ref.DateCreated = s.now().UTC()
	}
	if ref.RestockedQuantities == nil {
		ref.RestockedQuantities = dbtypes.Quantities{}
	}

	if strings.TrimSpace(ref.Reference) == "" {
		if err := s.hydrate(ctx, s.orders, ref); err != nil {
			return nil, s.fail(ctx, ref, err)
		}
		comp, err := ref.Compute()
		if err != nil {
			return nil, s.fail(ctx, ref, err)
		}
		reference, err := s.references.Generate(ctx, ref, comp)
		if err != nil {
			return nil, s.fail(ctx, ref, err)
		}
		ref.Reference = reference
	}

	var ev RefundEvent
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersTx := s.orders.WithTx(tx)

		if ref.ParentTransactionID > 0 {
			if _, err := ordersTx.LockTransaction(ctx, ref.ParentTransactionID); err != nil && !isNotFound(err) {
				return err
			}
		}
		if err := s.hydrate(ctx, ordersTx, ref); err != nil {
			return err
		}

		comp, err := ref.Compute()
		if err != nil {
			return err
		}
		vc, err := s.validationContext(ctx, ordersTx, s.store.WithTx(tx), ref, requestedTotal)
		if err != nil {
			return err
		}
		if errs := ValidateRefund(ref, comp, vc); !errs.Empty() {
			return errs.Err()
		}
		if ref.IncludesAllLineItems {
			ref.LineItemsData = expandSelections(comp)
		}

		ev = RefundEvent{
			Refund:      ref,
			Computation: comp,
			IsNew:       isNew,
			ActorID:     actorID,
			Transaction: ref.Transaction,
			Tx:          tx,
		}
		if err := s.observer.BeforeSaveRefund(ctx, ev); err != nil {
			return err
		}

		if err := s.restock(ctx, tx, ev); err != nil {
			return err
		}

		if ref.Transaction == nil {
			txn, err := s.createRefundTransaction(ctx, ordersTx, ev)
			if err != nil {
				return err
			}
			ref.Transaction = txn
			ref.TransactionID = txn.ID
			ev.Transaction = txn
		}

		if _, err := ordersTx.UpdateOrderPaidInformation(ctx, ref.OrderID); err != nil {
			return err
		}

		if !isNew {
			ref.IsRevisable = false
		}
		if err := s.writeRecord(ctx, tx, ref, isNew); err != nil {
			return err
		}

		if ev.Computation, err = ref.Compute(); err != nil {
			return err
		}
		if err := s.recordLedger(ctx, tx, ev); err != nil {
			return err
		}
		return s.observer.RefundWritten(ctx, ev)
	})
	if err != nil {
		return nil, s.fail(ctx, ref, err)
	}

	s.store.Invalidate(ref.OrderID)
	ev.Tx = nil
	if err := s.observer.AfterSaveRefund(ctx, ev); err != nil && s.logg != nil {
		s.logg.Error(s.logContext(ctx, ref), "refund after save observer failed", err)
	}
	if s.logg != nil {
		s.logg.Info(s.logContext(ctx, ref), "refund saved")
	}
	return &SavedRefund{Refund: ref, Computation: ev.Computation}, nil
}

// hydrate attaches fresh order and transaction snapshots read through
// ordersSvc. Missing transactions are left nil for validation to report.
func (s *service) hydrate(ctx context.Context, ordersSvc orders.Service, ref *Refund) error {
	order, err := ordersSvc.GetOrder(ctx, ref.OrderID)
	if err != nil {
		return err
	}
	ref.Order = order

	ref.ParentTransaction = nil
	if ref.ParentTransactionID > 0 {
		parent, err := ordersSvc.GetTransaction(ctx, ref.ParentTransactionID)
		if err != nil && !isNotFound(err) {
			return err
		}
		ref.ParentTransaction = parent
	}

	ref.Transaction = nil
	if ref.TransactionID > 0 {
		txn, err := ordersSvc.GetTransaction(ctx, ref.TransactionID)
		if err != nil {
			if !isNotFound(err) {
				return err
			}
			return nil
		}
		ref.Transaction = txn
		if ref.ParentTransactionID == 0 {
			ref.ParentTransactionID = txn.ParentIDValue()
			if parent, err := ordersSvc.GetTransaction(ctx, ref.ParentTransactionID); err == nil {
				ref.ParentTransaction = parent
			}
		}
	}
	return nil
}

// validationContext gathers the order wide figures for ref, leaving ref's own
// stored quantities, shipping and amount out.
func (s *service) validationContext(ctx context.Context, ordersSvc orders.Service, store *Store, ref *Refund, requestedTotal *int64) (ValidationContext, error) {
	vc := ValidationContext{RequestedTotal: requestedTotal}

	if parent := ref.ParentTransaction; parent != nil {
		canRefund, err := ordersSvc.CanRefund(ctx, parent)
		if err != nil {
			return vc, err
		}
		remaining, err := ordersSvc.RefundableAmount(ctx, parent)
		if err != nil {
			return vc, err
		}
		if txn := ref.Transaction; txn != nil && txn.IsSuccessful() && txn.ParentIDValue() == parent.ID {
			remaining += txn.Amount
		}
		vc.ParentCanRefund = canRefund
		vc.RefundableAmount = remaining
	}

	quantities, err := store.RefundableLineItemQuantities(ctx, ref.Order, ref.ID)
	if err != nil {
		return vc, err
	}
	vc.RefundableQuantities = quantities

	canShip, err := store.CanRefundShipping(ctx, ref.OrderID, ref.ID)
	if err != nil {
		return vc, err
	}
	vc.CanRefundShipping = canShip
	return vc, nil
}

func (s *service) restock(ctx context.Context, tx *gorm.DB, ev RefundEvent) error {
	inv := s.inventory.WithTx(tx)
	ref := ev.Refund
	for _, li := range ev.Computation.LineItems {
		if !li.Restock {
			continue
		}
		canRestock, err := inv.CanRestock(ctx, li.LineItem.PurchasableID)
		if err != nil {
			return err
		}
		qty := li.QtyToRestock(canRestock)
		if qty <= 0 {
			continue
		}

		itemEvent := RefundLineItemEvent{RefundEvent: ev, LineItem: li, Qty: qty}
		if err := s.observer.BeforeRestockRefundItem(ctx, itemEvent); err != nil {
			return err
		}
		if err := inv.IncrementStock(ctx, *li.LineItem.PurchasableID, qty); err != nil {
			return err
		}
		ref.RestockedQuantities[li.LineItem.ID] += qty
		if err := s.observer.AfterRestockRefundItem(ctx, itemEvent); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) createRefundTransaction(ctx context.Context, ordersSvc orders.Service, ev RefundEvent) (*models.Transaction, error) {
	ref := ev.Refund
	parent := ref.ParentTransaction
	if parent == nil {
		return nil, pkgerrors.New(pkgerrors.CodeRefundTransactionFailed, "parent transaction required")
	}
	if err := s.observer.BeforeCreateRefundTransaction(ctx, ev); err != nil {
		return nil, err
	}

	amount := ev.Computation.Total
	res, err := s.gateway.Refund(ctx, parent, amount, ref.Note)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeRefundTransactionFailed {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeRefundTransactionFailed, err, "gateway refund failed").
			WithDetails(map[string]any{"message": err.Error()})
	}
	if !res.Succeeded() {
		return nil, pkgerrors.New(pkgerrors.CodeRefundTransactionFailed, "gateway declined the refund").
			WithDetails(map[string]any{"message": res.Message, "status": res.Status})
	}

	parentID := parent.ID
	txn := &models.Transaction{
		OrderID:   ref.OrderID,
		ParentID:  &parentID,
		Type:      enums.TransactionRefund,
		Status:    res.Status,
		Gateway:   parent.Gateway,
		Reference: res.Reference,
		Amount:    amount,
		Currency:  parent.Currency,
		Message:   res.Message,
		Note:      ref.Note,
	}
	if err := ordersSvc.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}

	ev.Transaction = txn
	if err := s.observer.AfterCreateRefundTransaction(ctx, ev); err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *service) writeRecord(ctx context.Context, tx *gorm.DB, ref *Refund, isNew bool) error {
	repo := s.repo.WithTx(tx)
	rec := ref.record()
	var err error
	if isNew {
		err = repo.Create(ctx, rec)
	} else {
		err = repo.Update(ctx, rec)
	}
	if dbpkg.IsUniqueViolation(err, "ux_refunds_reference", "refunds.reference") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "refund reference already in use").
			WithDetails(map[string]any{"reference": rec.Reference})
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write refund")
	}
	ref.ID = rec.ID
	ref.UID = rec.UID
	ref.DateCreated = rec.DateCreated
	ref.DateUpdated = rec.DateUpdated
	return nil
}

type ledgerMetadata struct {
	Reference        string `json:"reference"`
	TotalQty         int    `json:"total_qty"`
	IncludesShipping bool   `json:"includes_shipping"`
	Restocked        int    `json:"restocked"`
}

func (s *service) recordLedger(ctx context.Context, tx *gorm.DB, ev RefundEvent) error {
	ref := ev.Refund
	restocked := 0
	for _, n := range ref.RestockedQuantities {
		restocked += n
	}
	meta, err := json.Marshal(ledgerMetadata{
		Reference:        ref.Reference,
		TotalQty:         ev.Computation.TotalQty,
		IncludesShipping: ref.IncludesShipping,
		Restocked:        restocked,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal ledger metadata")
	}

	_, err = s.ledger.WithTx(tx).Record(ctx, ledger.Entry{
		OrderID:       ref.OrderID,
		RefundID:      ref.ID,
		TransactionID: ref.TransactionID,
		ActorID:       ev.ActorID,
		Revision:      !ev.IsNew,
		TotalMinor:    ev.Computation.Total,
		Currency:      ref.Transaction.Currency,
		Metadata:      meta,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record ledger entry")
	}
	return nil
}

// fail logs err with the refund's identifiers and records the save outcome.
func (s *service) fail(ctx context.Context, ref *Refund, err error) error {
	outcome := metrics.OutcomeError
	if typed := pkgerrors.As(err); typed != nil {
		switch typed.Code() {
		case pkgerrors.CodeValidation:
			outcome = metrics.OutcomeInvalid
		case pkgerrors.CodeRefundTransactionFailed:
			outcome = metrics.OutcomeTransactionFailed
		case pkgerrors.CodeRestockFailed:
			outcome = metrics.OutcomeRestockFailed
		}
	}
	s.metrics.IncSave(outcome)

	if s.logg != nil {
		logCtx := s.logContext(ctx, ref)
		if outcome == metrics.OutcomeInvalid {
			s.logg.Warn(logCtx, "refund rejected")
		} else {
			s.logg.Error(logCtx, "refund save failed", err)
		}
	}
	return err
}

func (s *service) logContext(ctx context.Context, ref *Refund) context.Context {
	ctx = s.logg.WithOrderID(ctx, ref.OrderID)
	ctx = s.logg.WithTransactionID(ctx, ref.TransactionID)
	if ref.ID > 0 {
		ctx = s.logg.WithRefundID(ctx, ref.ID)
	}
	return s.logg.WithField(ctx, "reference", ref.Reference)
}

func expandSelections(comp Computation) dbtypes.LineItemSelections {
	out := make(dbtypes.LineItemSelections, len(comp.LineItems))
	for _, li := range comp.LineItems {
		out[li.LineItem.ID] = dbtypes.LineItemSelection{Qty: li.Qty, Restock: li.Restock}
	}
	return out
}
