package integration

import (
	"time"

	"github.com/google/uuid"
)

// AuthMethod is how an integration authenticates against its provider.
type AuthMethod string

const (
	AuthOAuth  AuthMethod = "oauth"
	AuthAPIKey AuthMethod = "api_key"
)

// Status is the lifecycle state of an integration.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// POSIntegration is a merchant's credential record for one POS provider.
// Access and refresh tokens are stored encrypted; only the token manager
// decrypts them, immediately before a provider call.
type POSIntegration struct {
	ID               uuid.UUID  `json:"id"`
	MerchantID       uuid.UUID  `json:"merchant_id"`
	Provider         string     `json:"provider"`
	AuthMethod       AuthMethod `json:"auth_method"`
	AccessToken      string     `json:"-"` // encrypted at rest
	RefreshToken     string     `json:"-"` // encrypted at rest
	TokenExpiresAt   *time.Time `json:"token_expires_at,omitempty"`
	ExternalStoreID  string     `json:"external_store_id,omitempty"`
	Status           Status     `json:"status"`
	BarterPercentage float64    `json:"barter_percentage"`
	WebhookURL       string     `json:"webhook_url,omitempty"`
	Scopes           []string   `json:"scopes,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// OAuthState is the single-use CSRF token binding an authorization
// redirect to the merchant who initiated it.
type OAuthState struct {
	StateToken string    `json:"state_token"`
	MerchantID uuid.UUID `json:"merchant_id"`
	Provider   string    `json:"provider"`
	ExpiresAt  time.Time `json:"expires_at"`
}
