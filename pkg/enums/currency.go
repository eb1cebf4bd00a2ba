package enums

// Currency is an ISO 4217 code. Amounts are always stored in minor units.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyCAD Currency = "CAD"
	CurrencyJPY Currency = "JPY"
)

var currencies = values[Currency]{CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencyCAD, CurrencyJPY}

func (c Currency) String() string { return string(c) }

func (c Currency) IsValid() bool { return currencies.has(c) }

func ParseCurrency(value string) (Currency, error) {
	return currencies.parse("currency", value)
}
