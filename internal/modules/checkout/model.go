package checkout

// LineItem is a checkout line as sent by the POS client.
type LineItem struct {
	Name      string  `json:"name"`
	Barcode   string  `json:"barcode,omitempty"`
	SKU       string  `json:"sku,omitempty"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	Category  string  `json:"category,omitempty"`
}

// TotalPrice is the extended price of the line.
func (li LineItem) TotalPrice() float64 {
	return li.UnitPrice * float64(li.Quantity)
}

// ClassifiedItem is a line item with its barter-eligibility verdict.
type ClassifiedItem struct {
	LineItem
	IsBarterEligible  bool   `json:"is_barter_eligible"`
	RestrictionReason string `json:"restriction_reason,omitempty"`
	CategoryName      string `json:"category_name,omitempty"`
	Matched           bool   `json:"matched"`
}

// Split separates a checkout into barter-eligible and restricted lines.
type Split struct {
	EligibleItems      []ClassifiedItem `json:"eligible_items"`
	RestrictedItems    []ClassifiedItem `json:"restricted_items"`
	EligibleSubtotal   float64          `json:"eligible_subtotal"`
	RestrictedSubtotal float64          `json:"restricted_subtotal"`
	HasRestrictedItems bool             `json:"has_restricted_items"`
}

// Payment is the full cash/barter/tax breakdown for a checkout.
type Payment struct {
	EligibleSubtotal       float64 `json:"eligible_subtotal"`
	RestrictedSubtotal     float64 `json:"restricted_subtotal"`
	BarterAmount           float64 `json:"barter_amount"`
	CashForEligibleItems   float64 `json:"cash_for_eligible_items"`
	CashForRestrictedItems float64 `json:"cash_for_restricted_items"`
	TaxOnCash              float64 `json:"tax_on_cash"`
	FinalTotal             float64 `json:"final_total"`
	BarterCreditsRemaining float64 `json:"barter_credits_remaining"`
}

// Warning is a non-fatal note attached to a validated payment.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
