package split

import (
	"fmt"
	"math"
)

// Split is the result of dividing a transaction total between tenders.
type Split struct {
	BarterAmount     float64 `json:"barter_amount"`
	CardAmount       float64 `json:"card_amount"`
	CashAmount       float64 `json:"cash_amount"`
	BarterPercentage float64 `json:"barter_percentage"`
}

// Round2 rounds a monetary amount to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Calculate divides total between barter and card tenders.
// barterAmount = round2(total * pct / 100); the card tender absorbs the
// remainder so the two always sum back to total within a cent. Tips are
// recorded on the transaction, never folded into a tender.
func Calculate(total, barterPercentage float64) (*Split, error) {
	if err := validate(total, barterPercentage); err != nil {
		return nil, err
	}

	barter := Round2(total * barterPercentage / 100)
	card := Round2(total - barter)

	return &Split{
		BarterAmount:     barter,
		CardAmount:       card,
		CashAmount:       0,
		BarterPercentage: barterPercentage,
	}, nil
}

// CalculateWithCash is the custom-split variant: the caller pins a cash
// tender and the card tender absorbs whatever barter and cash leave over.
func CalculateWithCash(total, barterPercentage, cashAmount float64) (*Split, error) {
	if err := validate(total, barterPercentage); err != nil {
		return nil, err
	}
	if cashAmount < 0 || cashAmount > total {
		return nil, fmt.Errorf("cash_amount must be between 0 and total")
	}

	barter := Round2(total * barterPercentage / 100)
	if barter+cashAmount > total {
		barter = Round2(total - cashAmount)
	}
	card := Round2(total - barter - cashAmount)

	return &Split{
		BarterAmount:     barter,
		CardAmount:       card,
		CashAmount:       cashAmount,
		BarterPercentage: barterPercentage,
	}, nil
}

// CalculateWithLimits clamps the barter tender to whatever daily headroom
// remains and reports the percentage actually applied rather than the one
// requested, so callers can surface the real split to the merchant.
func CalculateWithLimits(total, barterPercentage, dailyUsed, dailyLimit float64) (*Split, error) {
	if err := validate(total, barterPercentage); err != nil {
		return nil, err
	}

	barter := Round2(total * barterPercentage / 100)
	remaining := math.Max(0, dailyLimit-dailyUsed)
	if barter > remaining {
		barter = Round2(remaining)
	}
	card := Round2(total - barter)

	actualPct := 0.0
	if total > 0 {
		actualPct = Round2(barter / total * 100)
	}

	return &Split{
		BarterAmount:     barter,
		CardAmount:       card,
		CashAmount:       0,
		BarterPercentage: actualPct,
	}, nil
}

func validate(total, barterPercentage float64) error {
	if total < 0 {
		return fmt.Errorf("total cannot be negative")
	}
	if barterPercentage < 0 || barterPercentage > 100 {
		return fmt.Errorf("barter_percentage must be between 0 and 100")
	}
	return nil
}
