package enums

// LedgerEventType separates first saves from revisions in ledger_events.
type LedgerEventType string

const (
	LedgerEventTypeRefund         LedgerEventType = "refund"
	LedgerEventTypeRefundRevision LedgerEventType = "refund_revision"
)

var ledgerEventTypes = values[LedgerEventType]{LedgerEventTypeRefund, LedgerEventTypeRefundRevision}

func (t LedgerEventType) IsValid() bool { return ledgerEventTypes.has(t) }
