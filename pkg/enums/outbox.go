package enums

// OutboxAggregateType names what an outbox row's aggregate_id points at.
type OutboxAggregateType string

const AggregateRefund OutboxAggregateType = "refund"

var aggregateTypes = values[OutboxAggregateType]{AggregateRefund}

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

type OutboxEventType string

const (
	EventRefundSaved              OutboxEventType = "refund_saved"
	EventRefundItemRestocked      OutboxEventType = "refund_item_restocked"
	EventRefundTransactionCreated OutboxEventType = "refund_transaction_created"
)

var outboxEventTypes = values[OutboxEventType]{EventRefundSaved, EventRefundItemRestocked, EventRefundTransactionCreated}

func (e OutboxEventType) IsValid() bool { return outboxEventTypes.has(e) }

// OutboxDLQErrorReason records why the publisher gave up on a row.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var dlqReasons = values[OutboxDLQErrorReason]{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable}

func (r OutboxDLQErrorReason) IsValid() bool { return dlqReasons.has(r) }
