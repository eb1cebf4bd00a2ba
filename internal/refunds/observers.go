package refunds

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/order-refunds/pkg/enums"
	"github.com/angelmondragon/order-refunds/pkg/metrics"
	"github.com/angelmondragon/order-refunds/pkg/outbox"
	"github.com/angelmondragon/order-refunds/pkg/outbox/payloads"
)

const outboxPayloadVersion = 1

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// OutboxObserver queues refund events in the outbox within the save
// transaction, so they are published only if the save commits.
type OutboxObserver struct {
	NopObserver
	outbox outboxEmitter
}

// NewOutboxObserver wraps an outbox emitter.
func NewOutboxObserver(emitter outboxEmitter) *OutboxObserver {
	return &OutboxObserver{outbox: emitter}
}

func (o *OutboxObserver) RefundWritten(ctx context.Context, ev RefundEvent) error {
	ref := ev.Refund
	payload := payloads.RefundSavedEvent{
		RefundID:            ref.ID,
		RefundUID:           ref.UID,
		Reference:           ref.Reference,
		OrderID:             ref.OrderID,
		TransactionID:       ref.TransactionID,
		ParentTransactionID: ref.ParentTransactionID,
		Total:               ev.Computation.Total,
		Currency:            currencyOf(ref),
		TotalQty:            ev.Computation.TotalQty,
		IncludesShipping:    ref.IncludesShipping,
		IsNew:               ev.IsNew,
		IsRevisable:         ref.IsRevisable,
		SavedAt:             time.Now().UTC(),
	}
	return o.emit(ctx, ev, enums.EventRefundSaved, payload)
}

func (o *OutboxObserver) AfterRestockRefundItem(ctx context.Context, ev RefundLineItemEvent) error {
	var purchasableID int64
	if ev.LineItem.LineItem.PurchasableID != nil {
		purchasableID = *ev.LineItem.LineItem.PurchasableID
	}
	payload := payloads.RefundItemRestockedEvent{
		RefundUID:     ev.Refund.UID,
		Reference:     ev.Refund.Reference,
		OrderID:       ev.Refund.OrderID,
		LineItemID:    ev.LineItem.LineItem.ID,
		PurchasableID: purchasableID,
		Qty:           ev.Qty,
	}
	return o.emit(ctx, ev.RefundEvent, enums.EventRefundItemRestocked, payload)
}

func (o *OutboxObserver) AfterCreateRefundTransaction(ctx context.Context, ev RefundEvent) error {
	txn := ev.Transaction
	if txn == nil {
		return nil
	}
	payload := payloads.RefundTransactionCreatedEvent{
		RefundUID:           ev.Refund.UID,
		Reference:           ev.Refund.Reference,
		OrderID:             txn.OrderID,
		TransactionID:       txn.ID,
		ParentTransactionID: txn.ParentIDValue(),
		Amount:              txn.Amount,
		Currency:            string(txn.Currency),
		Gateway:             txn.Gateway,
		Status:              txn.Status,
		GatewayReference:    txn.Reference,
	}
	// A refund owns at most one gateway transaction.
	return o.outbox.EmitIfNotExists(ctx, ev.Tx, o.event(ev, enums.EventRefundTransactionCreated, payload))
}

func (o *OutboxObserver) emit(ctx context.Context, ev RefundEvent, eventType enums.OutboxEventType, data any) error {
	return o.outbox.Emit(ctx, ev.Tx, o.event(ev, eventType, data))
}

func (o *OutboxObserver) event(ev RefundEvent, eventType enums.OutboxEventType, data any) outbox.DomainEvent {
	var actor *outbox.ActorRef
	if ev.ActorID != "" {
		actor = &outbox.ActorRef{ActorID: ev.ActorID}
	}
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateRefund,
		AggregateID:   ev.Refund.UID,
		Actor:         actor,
		Data:          data,
		Version:       outboxPayloadVersion,
	}
}

// MetricsObserver counts committed refunds and restocked units.
type MetricsObserver struct {
	NopObserver
	metrics *metrics.RefundMetrics
}

// NewMetricsObserver wraps the refund metrics.
func NewMetricsObserver(m *metrics.RefundMetrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) AfterSaveRefund(_ context.Context, ev RefundEvent) error {
	o.metrics.IncSave(metrics.OutcomeSaved)
	if ev.IsNew && ev.Transaction != nil {
		o.metrics.AddRefunded(string(ev.Transaction.Currency), ev.Transaction.Amount)
	}
	return nil
}

func (o *MetricsObserver) AfterRestockRefundItem(_ context.Context, ev RefundLineItemEvent) error {
	o.metrics.AddRestocked(ev.Qty)
	return nil
}

func currencyOf(ref *Refund) string {
	switch {
	case ref.Transaction != nil:
		return string(ref.Transaction.Currency)
	case ref.Order != nil:
		return string(ref.Order.Currency)
	}
	return ""
}
