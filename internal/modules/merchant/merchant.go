package merchant

import (
	"time"

	"github.com/google/uuid"
)

// Merchant is a business accepting barter credits through its POS.
type Merchant struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	BusinessName string    `json:"business_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
