package square

import (
	"errors"
	"strings"

	sq "github.com/square/square-go-sdk"
)

const maxReasonLen = 192

// RefundPaymentParams describes a refund against a completed Square payment.
type RefundPaymentParams struct {
	PaymentID      string
	AmountCents    int64
	Currency       string
	Reason         string
	IdempotencyKey string
}

func (p RefundPaymentParams) validate() error {
	switch {
	case strings.TrimSpace(p.PaymentID) == "":
		return errors.New("payment id is required")
	case p.AmountCents <= 0:
		return errors.New("amount must be positive")
	}
	return nil
}

func (p RefundPaymentParams) request(idempotencyKey string) *sq.RefundPaymentRequest {
	currency := sq.Currency(strings.ToUpper(strings.TrimSpace(p.Currency)))
	if currency == "" {
		currency = sq.Currency("USD")
	}
	amount := p.AmountCents
	paymentID := strings.TrimSpace(p.PaymentID)

	req := &sq.RefundPaymentRequest{
		IdempotencyKey: idempotencyKey,
		PaymentID:      &paymentID,
		AmountMoney:    &sq.Money{Amount: &amount, Currency: &currency},
	}
	if reason := strings.TrimSpace(p.Reason); reason != "" {
		if len(reason) > maxReasonLen {
			reason = reason[:maxReasonLen]
		}
		req.Reason = &reason
	}
	return req
}

// RefundResult is the part of a Square PaymentRefund callers act on.
type RefundResult struct {
	ID     string
	Status string
}

// Failed reports whether Square rejected the refund. A nil result counts as
// failed.
func (r *RefundResult) Failed() bool {
	if r == nil {
		return true
	}
	s := strings.ToUpper(r.Status)
	return s == "REJECTED" || s == "FAILED"
}

func (r *RefundResult) Pending() bool {
	return r != nil && strings.EqualFold(r.Status, "PENDING")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
