package checkout

import "context"

// Service defines checkout-time barter calculation logic.
type Service interface {
	Calculate(ctx context.Context, req CalculateRequest) (*CalculateResponse, error)
}

// CalculateRequest is the payload for a checkout barter calculation.
type CalculateRequest struct {
	MerchantID       string     `json:"merchant_id"`
	Items            []LineItem `json:"items"`
	BarterPercentage float64    `json:"barter_percentage"`
	AvailableCredits float64    `json:"available_credits"`
	TaxRate          float64    `json:"tax_rate"`
}

// CalculateResponse carries the split, the payment breakdown, and any
// warnings raised during validation.
type CalculateResponse struct {
	Split    *Split    `json:"split"`
	Payment  *Payment  `json:"payment"`
	Warnings []Warning `json:"warnings,omitempty"`
}

type service struct{ matcher *Matcher }

func NewService(matcher *Matcher) Service { return &service{matcher: matcher} }

func (s *service) Calculate(ctx context.Context, req CalculateRequest) (*CalculateResponse, error) {
	split, err := s.matcher.Match(ctx, req.MerchantID, req.Items)
	if err != nil {
		return nil, err
	}

	payment, err := CalculatePayment(split, req.BarterPercentage, req.AvailableCredits, req.TaxRate)
	if err != nil {
		return nil, err
	}

	warnings, err := ValidatePayment(split, payment, req.AvailableCredits)
	if err != nil {
		return nil, err
	}

	return &CalculateResponse{Split: split, Payment: payment, Warnings: warnings}, nil
}
