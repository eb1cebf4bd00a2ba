package enums

// PaidStatus summarises an order's payment position.
type PaidStatus string

const (
	PaidStatusUnpaid   PaidStatus = "unpaid"
	PaidStatusPartial  PaidStatus = "partial"
	PaidStatusPaid     PaidStatus = "paid"
	PaidStatusOverPaid PaidStatus = "overpaid"
)

var paidStatuses = values[PaidStatus]{PaidStatusUnpaid, PaidStatusPartial, PaidStatusPaid, PaidStatusOverPaid}

func (p PaidStatus) String() string { return string(p) }

func (p PaidStatus) IsValid() bool { return paidStatuses.has(p) }

// PaidStatusFor compares what has been paid against the order total.
func PaidStatusFor(totalPrice, totalPaid int64) PaidStatus {
	switch {
	case totalPaid <= 0:
		return PaidStatusUnpaid
	case totalPaid < totalPrice:
		return PaidStatusPartial
	case totalPaid == totalPrice:
		return PaidStatusPaid
	default:
		return PaidStatusOverPaid
	}
}

// RefundStatus tracks how much of an order's paid amount went back out.
type RefundStatus string

const (
	RefundStatusNone    RefundStatus = "none"
	RefundStatusPartial RefundStatus = "partial"
	RefundStatusFull    RefundStatus = "full"
)

var refundStatuses = values[RefundStatus]{RefundStatusNone, RefundStatusPartial, RefundStatusFull}

func (r RefundStatus) String() string { return string(r) }

func (r RefundStatus) IsValid() bool { return refundStatuses.has(r) }

// RefundStatusFor derives the order refund status from the captured and
// refunded amounts, both in minor units.
func RefundStatusFor(captured, refunded int64) RefundStatus {
	switch {
	case refunded <= 0:
		return RefundStatusNone
	case refunded >= captured:
		return RefundStatusFull
	default:
		return RefundStatusPartial
	}
}
