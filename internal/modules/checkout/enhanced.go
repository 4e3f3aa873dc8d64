package checkout

import (
	"errors"
	"fmt"
	"math"
)

// ErrInsufficientCredits is returned when the barter amount exceeds the
// credits available for the eligible subtotal.
var ErrInsufficientCredits = errors.New("insufficient barter credits")

// ErrBarterOnRestricted is returned when a computed barter amount would
// spill past the eligible subtotal into restricted lines.
var ErrBarterOnRestricted = errors.New("barter credits applied to restricted items")

// CalculatePayment combines an eligibility split with the requested
// barter percentage and available credit balance. Tax is charged on the
// cash portion only; barter credits never reduce restricted lines
// because they are only ever subtracted from the eligible subtotal.
func CalculatePayment(s *Split, barterPercentage, availableCredits, taxRate float64) (*Payment, error) {
	if barterPercentage < 0 || barterPercentage > 100 {
		return nil, fmt.Errorf("barter_percentage must be between 0 and 100")
	}
	if availableCredits < 0 {
		return nil, fmt.Errorf("available_credits cannot be negative")
	}
	if taxRate < 0 {
		return nil, fmt.Errorf("tax_rate cannot be negative")
	}

	maxBarter := math.Min(availableCredits, s.EligibleSubtotal)
	barter := math.Min(maxBarter, round2(s.EligibleSubtotal*barterPercentage/100))

	cashEligible := round2(s.EligibleSubtotal - barter)
	cashRestricted := s.RestrictedSubtotal
	totalCash := cashEligible + cashRestricted
	taxOnCash := totalCash * taxRate / 100

	return &Payment{
		EligibleSubtotal:       s.EligibleSubtotal,
		RestrictedSubtotal:     s.RestrictedSubtotal,
		BarterAmount:           barter,
		CashForEligibleItems:   cashEligible,
		CashForRestrictedItems: cashRestricted,
		TaxOnCash:              taxOnCash,
		FinalTotal:             totalCash + taxOnCash,
		BarterCreditsRemaining: round2(availableCredits - barter),
	}, nil
}

// ValidatePayment re-checks a payment against the split it was derived
// from and collects non-fatal warnings. Payments built outside
// CalculatePayment go through the same checks.
func ValidatePayment(s *Split, p *Payment, availableCredits float64) ([]Warning, error) {
	if p.BarterAmount > s.EligibleSubtotal+0.01 {
		return nil, fmt.Errorf("%w: barter %.2f exceeds eligible subtotal %.2f",
			ErrBarterOnRestricted, p.BarterAmount, s.EligibleSubtotal)
	}
	maxBarter := math.Min(availableCredits, s.EligibleSubtotal)
	if p.BarterAmount > maxBarter+0.01 {
		return nil, fmt.Errorf("%w: barter %.2f exceeds available %.2f",
			ErrInsufficientCredits, p.BarterAmount, maxBarter)
	}

	var warnings []Warning
	if s.HasRestrictedItems {
		warnings = append(warnings, Warning{
			Code: "restricted_items",
			Message: fmt.Sprintf("%d restricted item(s) totalling %.2f must be paid in cash",
				len(s.RestrictedItems), s.RestrictedSubtotal),
		})
	}
	return warnings, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
