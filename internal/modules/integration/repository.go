package integration

import (
	"context"
	"time"
)

// Repository defines data access for integrations and OAuth state rows.
type Repository interface {
	Upsert(ctx context.Context, in *POSIntegration) error
	GetByID(ctx context.Context, id string) (*POSIntegration, error)
	// GetByProviderStore resolves the integration owning a webhook by the
	// provider's merchant key (location id, shop domain, merchant id...).
	GetByProviderStore(ctx context.Context, provider, externalStoreID string) (*POSIntegration, error)
	ListByMerchant(ctx context.Context, merchantID string) ([]*POSIntegration, error)
	// UpdateTokens atomically replaces both tokens and the expiry.
	UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt *time.Time) error
	UpdateStatus(ctx context.Context, id string, status Status) error

	CreateState(ctx context.Context, st *OAuthState) error
	// ConsumeState deletes and returns the state row in one statement so
	// a replayed callback can never reuse it.
	ConsumeState(ctx context.Context, token string) (*OAuthState, error)
}
