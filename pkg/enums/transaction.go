package enums

type TransactionType string

const (
	TransactionAuthorize TransactionType = "authorize"
	TransactionCapture   TransactionType = "capture"
	TransactionPurchase  TransactionType = "purchase"
	TransactionRefund    TransactionType = "refund"
)

var transactionTypes = values[TransactionType]{TransactionAuthorize, TransactionCapture, TransactionPurchase, TransactionRefund}

func (t TransactionType) String() string { return string(t) }

func (t TransactionType) IsValid() bool { return transactionTypes.has(t) }

func ParseTransactionType(value string) (TransactionType, error) {
	return transactionTypes.parse("transaction type", value)
}

type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusRedirect   TransactionStatus = "redirect"
	TransactionStatusSuccess    TransactionStatus = "success"
	TransactionStatusFailed     TransactionStatus = "failed"
	TransactionStatusProcessing TransactionStatus = "processing"
)

var transactionStatuses = values[TransactionStatus]{
	TransactionStatusPending,
	TransactionStatusRedirect,
	TransactionStatusSuccess,
	TransactionStatusFailed,
	TransactionStatusProcessing,
}

func (s TransactionStatus) String() string { return string(s) }

func (s TransactionStatus) IsValid() bool { return transactionStatuses.has(s) }

// TransactionGateway names the processor a transaction went through.
type TransactionGateway string

const (
	GatewayManual TransactionGateway = "manual"
	GatewaySquare TransactionGateway = "square"
)

var transactionGateways = values[TransactionGateway]{GatewayManual, GatewaySquare}

func (g TransactionGateway) String() string { return string(g) }

func (g TransactionGateway) IsValid() bool { return transactionGateways.has(g) }

func ParseTransactionGateway(value string) (TransactionGateway, error) {
	return transactionGateways.parse("transaction gateway", value)
}
