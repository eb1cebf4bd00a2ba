package enums

type AdjustmentType string

const (
	AdjustmentTax      AdjustmentType = "tax"
	AdjustmentDiscount AdjustmentType = "discount"
	AdjustmentShipping AdjustmentType = "shipping"
	AdjustmentCustom   AdjustmentType = "custom"
)

var adjustmentTypes = values[AdjustmentType]{AdjustmentTax, AdjustmentDiscount, AdjustmentShipping, AdjustmentCustom}

func (a AdjustmentType) String() string { return string(a) }

func (a AdjustmentType) IsValid() bool { return adjustmentTypes.has(a) }

func ParseAdjustmentType(value string) (AdjustmentType, error) {
	return adjustmentTypes.parse("adjustment type", value)
}

// TaxableTarget names the base a tax adjustment was computed against.
type TaxableTarget string

const (
	TaxablePrice                      TaxableTarget = "price"
	TaxableShipping                   TaxableTarget = "shipping"
	TaxablePriceAndShipping           TaxableTarget = "price_and_shipping"
	TaxableOrderTotalPrice            TaxableTarget = "order_total_price"
	TaxableOrderTotalShipping         TaxableTarget = "order_total_shipping"
	TaxableOrderTotalPriceAndShipping TaxableTarget = "order_total_price_and_shipping"
)

var taxableTargets = values[TaxableTarget]{
	TaxablePrice,
	TaxableShipping,
	TaxablePriceAndShipping,
	TaxableOrderTotalPrice,
	TaxableOrderTotalShipping,
	TaxableOrderTotalPriceAndShipping,
}

func (t TaxableTarget) String() string { return string(t) }

func (t TaxableTarget) IsValid() bool { return taxableTargets.has(t) }

// DependsOnShipping reports whether a refund without shipping has to leave
// a tax on this target out.
func (t TaxableTarget) DependsOnShipping() bool {
	switch t {
	case TaxableShipping, TaxablePriceAndShipping,
		TaxableOrderTotalShipping, TaxableOrderTotalPrice, TaxableOrderTotalPriceAndShipping:
		return true
	}
	return false
}
