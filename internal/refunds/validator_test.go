package refunds

import (
	"strings"
	"testing"

	"github.com/angelmondragon/order-refunds/pkg/db/models"
	dbtypes "github.com/angelmondragon/order-refunds/pkg/db/types"
	"github.com/angelmondragon/order-refunds/pkg/enums"
	pkgerrors "github.com/angelmondragon/order-refunds/pkg/errors"
)

func purchase(id, orderID, amount int64) *models.Transaction {
	return &models.Transaction{
		ID:       id,
		OrderID:  orderID,
		Type:     enums.TransactionPurchase,
		Status:   enums.TransactionStatusSuccess,
		Amount:   amount,
		Currency: enums.CurrencyUSD,
	}
}

func draftRefund(order *models.Order, parent *models.Transaction, sel dbtypes.LineItemSelections) *Refund {
	return &Refund{
		OrderID:             order.ID,
		ParentTransactionID: parent.ID,
		LineItemsData:       sel,
		RestockedQuantities: dbtypes.Quantities{},
		Order:               order,
		ParentTransaction:   parent,
	}
}

func openContext(refundable int64) ValidationContext {
	return ValidationContext{
		ParentCanRefund:      true,
		RefundableAmount:     refundable,
		RefundableQuantities: map[int64]int{1: 4},
		CanRefundShipping:    true,
	}
}

func TestValidateRefundAcceptsValidDraft(t *testing.T) {
	order := mugOrder()
	ref := draftRefund(order, purchase(5, order.ID, 4320), selections(1, 2))
	comp, _ := ref.Compute()
	total := comp.Total

	vc := openContext(4320)
	vc.RequestedTotal = &total
	if errs := ValidateRefund(ref, comp, vc); !errs.Empty() {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidateRefundCollectsEveryViolation(t *testing.T) {
	order := mugOrder()
	ref := draftRefund(order, purchase(5, order.ID, 4320), selections(1, 3))
	ref.IncludesShipping = true
	ref.RestockedQuantities = dbtypes.Quantities{1: 5}
	comp, _ := ref.Compute()
	wrong := comp.Total + 1

	vc := ValidationContext{
		ParentCanRefund:      false,
		RefundableAmount:     100,
		RefundableQuantities: map[int64]int{1: 2},
		CanRefundShipping:    false,
		RequestedTotal:       &wrong,
	}
	errs := ValidateRefund(ref, comp, vc)

	for _, key := range []string{"parentTransactionId", ErrKeyTotalRefundable, "total", "lineItemsData", "includesShipping", "restockedQuantities"} {
		if !errs.Has(key) {
			t.Fatalf("expected error for %s, got %v", key, errs)
		}
	}
}

func TestValidateRefundReferentialMismatch(t *testing.T) {
	order := mugOrder()
	parent := purchase(5, 99, 4320)
	ref := draftRefund(order, parent, selections(1, 1))
	ref.TransactionID = 6
	ref.Transaction = &models.Transaction{
		ID: 6, OrderID: 98, ParentID: int64Ptr(7),
		Type: enums.TransactionPurchase, Status: enums.TransactionStatusSuccess,
	}
	comp, _ := ref.Compute()

	errs := ValidateRefund(ref, comp, openContext(4320))
	if len(errs["transactionId"]) != 3 {
		t.Fatalf("expected type, order and parent mismatches, got %v", errs["transactionId"])
	}
	if !errs.Has("parentTransactionId") {
		t.Fatalf("expected parent order mismatch, got %v", errs)
	}
	if !errs.Has(ErrKeyTotalMatchesTransaction) {
		t.Fatalf("expected amount mismatch, got %v", errs)
	}
}

func TestValidateRefundMissingReferences(t *testing.T) {
	order := mugOrder()
	ref := &Refund{ParentTransactionID: 5, TransactionID: 6, Order: order}
	errs := ValidateRefund(ref, Computation{}, ValidationContext{CanRefundShipping: true})

	if !errs.Has("orderId") || !errs.Has("transactionId") || !errs.Has("parentTransactionId") {
		t.Fatalf("expected missing reference errors, got %v", errs)
	}
	if !strings.Contains(errs["parentTransactionId"][0], "not found") {
		t.Fatalf("unexpected parent message %q", errs["parentTransactionId"][0])
	}
}

func TestValidateRefundRejectsZeroTotalWithoutTransaction(t *testing.T) {
	order := mugOrder()
	order.Adjustments = nil
	ref := draftRefund(order, purchase(5, order.ID, 4000), selections(1, 0))
	comp, _ := ref.Compute()

	errs := ValidateRefund(ref, comp, openContext(4000))
	if !errs.Has("total") {
		t.Fatalf("expected total error, got %v", errs)
	}
}

func TestValidateRefundDoesNotMutate(t *testing.T) {
	order := mugOrder()
	ref := draftRefund(order, purchase(5, order.ID, 4320), selections(1, 2))
	ref.RestockedQuantities = dbtypes.Quantities{1: 9}
	comp, _ := ref.Compute()

	_ = ValidateRefund(ref, comp, openContext(0))
	if ref.RestockedQuantities[1] != 9 || ref.LineItemsData[1].Qty != 2 {
		t.Fatalf("validation mutated the refund: %+v", ref)
	}
}

func TestFieldErrorsErr(t *testing.T) {
	if (FieldErrors{}).Err() != nil {
		t.Fatal("empty errors should convert to nil")
	}
	errs := FieldErrors{}
	errs.Add("total", "must be greater than 0")
	errs.Merge(FieldErrors{"total": {"does not match"}, "note": {"too long"}})

	typed := pkgerrors.As(errs.Err())
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", errs.Err())
	}
	details, ok := typed.Details().(map[string][]string)
	if !ok || len(details["total"]) != 2 || len(details["note"]) != 1 {
		t.Fatalf("unexpected details %#v", typed.Details())
	}
}
