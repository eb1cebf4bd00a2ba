package refunds

import (
	"fmt"
	"maps"
	"slices"

	"github.com/angelmondragon/order-refunds/pkg/enums"
	pkgerrors "github.com/angelmondragon/order-refunds/pkg/errors"
)

// Error keys reported by ValidateRefund next to plain attribute names.
const (
	ErrKeyTotalRefundable         = "totalRefundable"
	ErrKeyTotalMatchesTransaction = "totalMatchesTransaction"
)

// FieldErrors maps an attribute or rule name to its messages.
type FieldErrors map[string][]string

// Add appends a message for key.
func (fe FieldErrors) Add(key, message string) {
	fe[key] = append(fe[key], message)
}

// Merge appends every message of other.
func (fe FieldErrors) Merge(other FieldErrors) {
	for key, messages := range other {
		fe[key] = append(fe[key], messages...)
	}
}

// Has reports whether key has at least one message.
func (fe FieldErrors) Has(key string) bool {
	return len(fe[key]) > 0
}

// Empty reports whether no rule failed.
func (fe FieldErrors) Empty() bool {
	return len(fe) == 0
}

// Err converts the collected errors into a validation error, nil when empty.
func (fe FieldErrors) Err() error {
	if fe.Empty() {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "refund validation failed").WithDetails(map[string][]string(fe))
}

// ValidationContext carries the order wide figures a refund is checked
// against. Every figure excludes the refund being validated.
type ValidationContext struct {
	ParentCanRefund      bool
	RefundableAmount     int64
	RefundableQuantities map[int64]int
	CanRefundShipping    bool
	RequestedTotal       *int64
}

// ValidateRefund runs the cross-field rules on a refund and its computation.
// Every rule runs; nothing is mutated.
func ValidateRefund(ref *Refund, comp Computation, vc ValidationContext) FieldErrors {
	errs := FieldErrors{}
	if ref == nil {
		errs.Add("refund", "is required")
		return errs
	}

	if ref.OrderID <= 0 {
		errs.Add("orderId", "is required")
	}
	if ref.Order != nil && ref.OrderID > 0 && ref.Order.ID != ref.OrderID {
		errs.Add("orderId", "does not match the loaded order")
	}

	if ref.TransactionID > 0 && ref.Transaction == nil {
		errs.Add("transactionId", "transaction not found")
	}
	if txn := ref.Transaction; txn != nil {
		if txn.Type != enums.TransactionRefund {
			errs.Add("transactionId", "transaction must be of type 'refund'")
		}
		if txn.OrderID != ref.OrderID {
			errs.Add("transactionId", "transaction does not belong to the order")
		}
		if txn.ParentIDValue() != ref.ParentTransactionID {
			errs.Add("transactionId", "transaction is not a refund of the parent transaction")
		}
		if comp.Total != txn.Amount {
			errs.Add(ErrKeyTotalMatchesTransaction, fmt.Sprintf("refund total %d does not match transaction amount %d", comp.Total, txn.Amount))
		}
	}

	if parent := ref.ParentTransaction; parent != nil {
		if parent.OrderID != ref.OrderID {
			errs.Add("parentTransactionId", "parent transaction does not belong to the order")
		}
		if ref.Transaction == nil && !vc.ParentCanRefund {
			errs.Add("parentTransactionId", "parent transaction can not be refunded")
		}
		if comp.Total > vc.RefundableAmount {
			errs.Add(ErrKeyTotalRefundable, fmt.Sprintf("refund total %d exceeds the refundable amount %d", comp.Total, vc.RefundableAmount))
		}
		if ref.Transaction == nil && comp.Total <= 0 {
			errs.Add("total", "must be greater than 0")
		}
	} else if ref.ParentTransactionID > 0 {
		errs.Add("parentTransactionId", "parent transaction not found")
	}

	if vc.RequestedTotal != nil && *vc.RequestedTotal != comp.Total {
		errs.Add("total", fmt.Sprintf("does not match the calculated refund total %d", comp.Total))
	}

	for _, id := range slices.Sorted(maps.Keys(ref.LineItemsData)) {
		if ref.LineItemsData[id].Qty < 0 {
			errs.Add("lineItemsData", fmt.Sprintf("line item %d: quantity must not be negative", id))
		}
	}
	if vc.RefundableQuantities != nil {
		for _, li := range comp.LineItems {
			remaining := vc.RefundableQuantities[li.LineItem.ID]
			if li.Qty > remaining {
				errs.Add("lineItemsData", fmt.Sprintf("line item %d: only %d units can be refunded", li.LineItem.ID, remaining))
			}
		}
	}

	if ref.IncludesShipping && !vc.CanRefundShipping {
		errs.Add("includesShipping", "shipping was already refunded")
	}

	for _, id := range slices.Sorted(maps.Keys(ref.RestockedQuantities)) {
		refunded := 0
		if li, ok := comp.LineItem(id); ok {
			refunded = li.Qty
		}
		if ref.RestockedQuantities[id] > refunded {
			errs.Add("restockedQuantities", fmt.Sprintf("line item %d: restocked quantity exceeds refunded quantity", id))
		}
	}

	return errs
}
