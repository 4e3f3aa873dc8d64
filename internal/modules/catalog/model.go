package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Product is a merchant catalog entry as seen by the settlement engine.
// The engine only reads eligibility flags; catalog management lives
// elsewhere and owns the writes.
type Product struct {
	ID                uuid.UUID `json:"id"`
	MerchantID        uuid.UUID `json:"merchant_id"`
	Name              string    `json:"name"`
	Barcode           string    `json:"barcode,omitempty"`
	SKU               string    `json:"sku,omitempty"`
	Price             float64   `json:"price"`
	IsBarterEligible  bool      `json:"is_barter_eligible"`
	BarterEnabled     bool      `json:"barter_enabled"`
	RestrictionReason string    `json:"restriction_reason,omitempty"`
	Category          *Category `json:"category,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Category groups products and can restrict an entire class of goods
// (e.g. alcohol) from barter settlement.
type Category struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	IsRestricted bool      `json:"is_restricted"`
}
