package refunds

import (
	"context"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/order-refunds/pkg/db/models"
)

// RefundEvent is delivered around a refund save.
type RefundEvent struct {
	Refund      *Refund
	Computation Computation
	IsNew       bool
	ActorID     string
	// Transaction is the refund transaction once it exists.
	Transaction *models.Transaction
	// Tx is the open storage transaction; nil for AfterSaveRefund.
	Tx *gorm.DB
}

// RefundLineItemEvent is delivered around the restock of one line item.
type RefundLineItemEvent struct {
	RefundEvent
	LineItem RefundLineItem
	Qty      int
}

// Observer receives refund lifecycle notifications. Every hook but
// AfterSaveRefund runs inside the storage transaction and a returned error
// rolls the save back. AfterSaveRefund runs after commit; its error is logged.
//
// BeforeSaveRefund runs once the refund validated, before any stock or
// gateway side effect. RefundWritten runs after the record and its ledger
// entry are written, when the refund has its ID.
type Observer interface {
	BeforeSaveRefund(ctx context.Context, ev RefundEvent) error
	RefundWritten(ctx context.Context, ev RefundEvent) error
	AfterSaveRefund(ctx context.Context, ev RefundEvent) error
	BeforeRestockRefundItem(ctx context.Context, ev RefundLineItemEvent) error
	AfterRestockRefundItem(ctx context.Context, ev RefundLineItemEvent) error
	BeforeCreateRefundTransaction(ctx context.Context, ev RefundEvent) error
	AfterCreateRefundTransaction(ctx context.Context, ev RefundEvent) error
}

// NopObserver implements Observer with no-ops; embed it to handle a subset.
type NopObserver struct{}

func (NopObserver) BeforeSaveRefund(context.Context, RefundEvent) error                { return nil }
func (NopObserver) RefundWritten(context.Context, RefundEvent) error                   { return nil }
func (NopObserver) AfterSaveRefund(context.Context, RefundEvent) error                 { return nil }
func (NopObserver) BeforeRestockRefundItem(context.Context, RefundLineItemEvent) error { return nil }
func (NopObserver) AfterRestockRefundItem(context.Context, RefundLineItemEvent) error  { return nil }
func (NopObserver) BeforeCreateRefundTransaction(context.Context, RefundEvent) error   { return nil }
func (NopObserver) AfterCreateRefundTransaction(context.Context, RefundEvent) error    { return nil }

// Observers fans a notification out to every observer in order. In
// transaction hooks stop at the first error; AfterSaveRefund notifies all
// and combines their errors.
type Observers []Observer

func (o Observers) BeforeSaveRefund(ctx context.Context, ev RefundEvent) error {
	for _, obs := range o {
		if err := obs.BeforeSaveRefund(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (o Observers) RefundWritten(ctx context.Context, ev RefundEvent) error {
	for _, obs := range o {
		if err := obs.RefundWritten(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (o Observers) AfterSaveRefund(ctx context.Context, ev RefundEvent) error {
	var err error
	for _, obs := range o {
		err = multierr.Append(err, obs.AfterSaveRefund(ctx, ev))
	}
	return err
}

func (o Observers) BeforeRestockRefundItem(ctx context.Context, ev RefundLineItemEvent) error {
	for _, obs := range o {
		if err := obs.BeforeRestockRefundItem(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (o Observers) AfterRestockRefundItem(ctx context.Context, ev RefundLineItemEvent) error {
	for _, obs := range o {
		if err := obs.AfterRestockRefundItem(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (o Observers) BeforeCreateRefundTransaction(ctx context.Context, ev RefundEvent) error {
	for _, obs := range o {
		if err := obs.BeforeCreateRefundTransaction(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (o Observers) AfterCreateRefundTransaction(ctx context.Context, ev RefundEvent) error {
	for _, obs := range o {
		if err := obs.AfterCreateRefundTransaction(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}
