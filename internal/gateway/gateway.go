// Package gateway issues refunds against the processor a parent transaction
// was paid through.
package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/order-refunds/pkg/db/models"
	"github.com/angelmondragon/order-refunds/pkg/enums"
	pkgerrors "github.com/angelmondragon/order-refunds/pkg/errors"
)

// Result is the processor outcome of a refund request.
type Result struct {
	Status    enums.TransactionStatus
	Reference string
	Message   string
}

// Succeeded reports whether the processor accepted the refund.
func (r *Result) Succeeded() bool {
	return r != nil && r.Status == enums.TransactionStatusSuccess
}

// Gateway refunds money captured by a parent transaction.
type Gateway interface {
	Refund(ctx context.Context, parent *models.Transaction, amount int64, note string) (*Result, error)
}

// Registry dispatches refunds to the gateway of the parent transaction.
type Registry struct {
	gateways map[enums.TransactionGateway]Gateway
}

// NewRegistry builds a registry; nil gateways are ignored.
func NewRegistry(gateways map[enums.TransactionGateway]Gateway) *Registry {
	r := &Registry{gateways: map[enums.TransactionGateway]Gateway{}}
	for name, gw := range gateways {
		if gw != nil {
			r.gateways[name] = gw
		}
	}
	return r
}

// Register adds or replaces the gateway for name.
func (r *Registry) Register(name enums.TransactionGateway, gw Gateway) {
	if gw == nil {
		return
	}
	r.gateways[name] = gw
}

// Refund implements Gateway by looking up the parent transaction's processor.
func (r *Registry) Refund(ctx context.Context, parent *models.Transaction, amount int64, note string) (*Result, error) {
	if parent == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "parent transaction is required")
	}
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	name := parent.Gateway
	if strings.TrimSpace(string(name)) == "" {
		name = enums.GatewayManual
	}
	gw, ok := r.gateways[name]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeRefundTransactionFailed, fmt.Sprintf("no refund gateway registered for %q", name)).
			WithDetails(map[string]any{"gateway": string(name)})
	}
	return gw.Refund(ctx, parent, amount, note)
}

// Manual records refunds for payments taken outside a processor. The money is
// returned by the merchant, so the refund always succeeds.
type Manual struct{}

// Refund implements Gateway.
func (Manual) Refund(_ context.Context, parent *models.Transaction, amount int64, _ string) (*Result, error) {
	return &Result{
		Status:  enums.TransactionStatusSuccess,
		Message: fmt.Sprintf("manual refund of %d %s recorded", amount, parent.Currency),
	}, nil
}
