package domain

// DiscountValidation is the structured accept/reject outcome of checking a
// code against a cart. Rejections are values, never errors, so callers can
// surface the specific reason to the shopper.
type DiscountValidation struct {
	Accepted bool
	Reason   string
	Discount *Discount
}

// DiscountCalculation carries the monetary outcome of applying a discount.
// When IsValid is false FinalAmount equals the untouched subtotal.
type DiscountCalculation struct {
	IsValid        bool
	Reason         string
	Discount       *Discount
	DiscountAmount float64
	FinalAmount    float64
}

// TaxLine pairs one resolved rate with the amount it contributed.
type TaxLine struct {
	Rate   TaxRate
	Amount float64
}

// TaxResult aggregates the resolved rates for a location and the tax they
// produce. TotalRate is the informational sum of the rate percentages; it is
// not used to derive TaxAmount since rates may have different bases.
type TaxResult struct {
	TaxAmount       float64
	TotalRate       float64
	ApplicableTaxes []TaxRate
	Breakdown       []TaxLine
}
