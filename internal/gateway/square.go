package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/order-refunds/pkg/db/models"
	"github.com/angelmondragon/order-refunds/pkg/enums"
	"github.com/angelmondragon/order-refunds/pkg/square"
)

// squareRefunder is the slice of the Square client the gateway needs.
type squareRefunder interface {
	RefundPayment(ctx context.Context, params square.RefundPaymentParams) (*square.RefundResult, error)
}

// Square refunds payments captured through Square. The parent transaction's
// reference holds the Square payment id.
type Square struct {
	client squareRefunder
}

// NewSquare wraps a Square client.
func NewSquare(client squareRefunder) (*Square, error) {
	if client == nil {
		return nil, fmt.Errorf("square client required")
	}
	return &Square{client: client}, nil
}

// Refund implements Gateway. A declined refund is reported through the
// result status; transport and API errors are returned as errors.
func (g *Square) Refund(ctx context.Context, parent *models.Transaction, amount int64, note string) (*Result, error) {
	paymentID := strings.TrimSpace(parent.Reference)
	if paymentID == "" {
		return &Result{
			Status:  enums.TransactionStatusFailed,
			Message: "parent transaction has no square payment reference",
		}, nil
	}

	res, err := g.client.RefundPayment(ctx, square.RefundPaymentParams{
		PaymentID:   paymentID,
		AmountCents: amount,
		Currency:    string(parent.Currency),
		Reason:      note,
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &Result{Status: enums.TransactionStatusFailed, Message: "square returned no refund"}, nil
	}

	// Square settles refunds asynchronously; PENDING means the refund was
	// accepted and funds are committed.
	status := enums.TransactionStatusSuccess
	if res.Failed() {
		status = enums.TransactionStatusFailed
	}
	return &Result{
		Status:    status,
		Reference: res.ID,
		Message:   fmt.Sprintf("square refund %s", strings.ToLower(res.Status)),
	}, nil
}
