package merchant

import "context"

// Repository defines data access for merchants.
type Repository interface {
	Create(ctx context.Context, m *Merchant) error
	GetByEmail(ctx context.Context, email string) (*Merchant, error)
	GetByID(ctx context.Context, id string) (*Merchant, error)
}
