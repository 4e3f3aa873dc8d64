package pos

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedProvider means the webhook named a provider with no
	// registered adapter.
	ErrUnsupportedProvider = errors.New("unsupported provider")
	// ErrSignatureInvalid rejects an inbound webhook before any
	// processing or persistence.
	ErrSignatureInvalid = errors.New("invalid signature")
	// ErrIntegrationNotFound means no active integration owns the
	// webhook's merchant key.
	ErrIntegrationNotFound = errors.New("integration not found")
	// ErrTokenExpired is the classified provider response that triggers
	// exactly one refresh-and-retry in outbound flows.
	ErrTokenExpired = errors.New("provider token expired")
	// ErrAuthExpired surfaces when the single refresh-and-retry also
	// failed. No further attempts follow.
	ErrAuthExpired = errors.New("provider authorization expired")
)

// ProviderAPIError carries a provider's non-auth failure back to the
// caller with enough detail to decide whether a retry makes sense.
type ProviderAPIError struct {
	Provider   Provider
	StatusCode int
	Body       string
}

func (e *ProviderAPIError) Error() string {
	return fmt.Sprintf("%s api error: status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Retryable reports whether the failure is transient (5xx); 4xx
// responses other than auth expiry are terminal.
func (e *ProviderAPIError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}
