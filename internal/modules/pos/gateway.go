package pos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/barterhq/barterhq-backend/internal/modules/integration"
	"github.com/barterhq/barterhq-backend/internal/modules/split"
)

// IntegrationResolver looks up the integration owning a webhook by the
// provider-specific merchant key.
type IntegrationResolver interface {
	GetByProviderStore(ctx context.Context, provider, externalStoreID string) (*integration.POSIntegration, error)
}

// Gateway is the single entry point for inbound provider webhooks:
// dispatch, signature check, integration resolution, normalisation,
// split computation, idempotent persistence.
type Gateway struct {
	registry Registry
	resolver IntegrationResolver
	store    Repository
	secrets  map[Provider]string

	// AllowUnsigned admits webhooks for providers with no configured
	// secret. Off by default; sandbox-only, and every use is logged.
	allowUnsigned bool
}

func NewGateway(registry Registry, resolver IntegrationResolver, store Repository, secrets map[Provider]string, allowUnsigned bool) *Gateway {
	return &Gateway{
		registry:      registry,
		resolver:      resolver,
		store:         store,
		secrets:       secrets,
		allowUnsigned: allowUnsigned,
	}
}

// HandleWebhook processes one inbound delivery. Replays of the same
// (provider, external id) succeed with Duplicate set and change nothing.
func (g *Gateway) HandleWebhook(ctx context.Context, provider string, body []byte, headers http.Header) (*WebhookResult, error) {
	p := Provider(provider)
	adapter, ok := g.registry[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}

	secret := g.secrets[p]
	if secret == "" {
		if !g.allowUnsigned {
			log.Printf("webhook rejected: no signing secret configured for %s", p)
			return nil, fmt.Errorf("%w: no signing secret configured for %s", ErrSignatureInvalid, p)
		}
		log.Printf("WARNING: accepting unsigned %s webhook (WEBHOOK_ALLOW_UNSIGNED is set)", p)
	} else if !adapter.VerifySignature(secret, body, headers) {
		return nil, ErrSignatureInvalid
	}

	ev, err := adapter.Normalize(body, headers)
	if err != nil {
		return nil, err
	}

	integ, err := g.resolver.GetByProviderStore(ctx, provider, ev.MerchantKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s %s", ErrIntegrationNotFound, provider, ev.MerchantKey)
		}
		return nil, err
	}

	sp, err := split.Calculate(ev.TotalAmount, integ.BarterPercentage)
	if err != nil {
		return nil, fmt.Errorf("split for %s %s: %w", provider, ev.ExternalID, err)
	}

	tx := &PosTransaction{
		ID:                    uuid.New(),
		Provider:              p,
		ExternalTransactionID: ev.ExternalID,
		MerchantID:            integ.MerchantID,
		IntegrationID:         integ.ID,
		TotalAmount:           ev.TotalAmount,
		Currency:              defaultCurrency(ev.Currency),
		TaxAmount:             ev.TaxAmount,
		TipAmount:             ev.TipAmount,
		DiscountAmount:        ev.DiscountAmount,
		BarterAmount:          sp.BarterAmount,
		BarterPercentage:      sp.BarterPercentage,
		CashAmount:            sp.CashAmount,
		CardAmount:            sp.CardAmount,
		Items:                 ev.Items,
		LocationID:            ev.LocationID,
		TransactionDate:       ev.TransactionDate,
		Status:                TxCompleted,
		RawPayload:            body,
		SyncStatus:            SyncSynced, // the event originated in the provider's ledger
	}

	inserted, err := g.store.CreateIfAbsent(ctx, tx)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return &WebhookResult{Duplicate: true}, nil
	}
	return &WebhookResult{TransactionID: tx.ID.String()}, nil
}

func defaultCurrency(c string) string {
	if c == "" {
		return "USD"
	}
	return c
}
