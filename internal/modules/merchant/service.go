package merchant

import "context"

// Service defines merchant account business logic.
type Service interface {
	Register(ctx context.Context, email, password, businessName string) (*Merchant, error)
	Get(ctx context.Context, id string) (*Merchant, error)
}
