package pos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/barterhq/barterhq-backend/internal/modules/integration"
)

// TokenSource hands out decrypted access tokens and performs the
// refresh when a provider reports expiry. Implemented by the
// integration token manager.
type TokenSource interface {
	AccessToken(ctx context.Context, integrationID string) (string, error)
	RefreshAccessToken(ctx context.Context, integrationID string) (string, error)
}

// IntegrationLoader loads credential records for outbound calls.
type IntegrationLoader interface {
	GetByID(ctx context.Context, id string) (*integration.POSIntegration, error)
}

// Orchestrator pushes settled transactions into the provider's own
// ledger. On a token-expiry failure it refreshes once and retries once;
// any further failure is surfaced as-is or as ErrAuthExpired.
type Orchestrator struct {
	registry     Registry
	store        Repository
	integrations IntegrationLoader
	tokens       TokenSource
	client       *http.Client
}

func NewOrchestrator(registry Registry, store Repository, integrations IntegrationLoader, tokens TokenSource, client *http.Client) *Orchestrator {
	return &Orchestrator{
		registry:     registry,
		store:        store,
		integrations: integrations,
		tokens:       tokens,
		client:       client,
	}
}

// Sync mirrors the transaction named by req into the provider ledger
// and records the provider-assigned id locally.
func (o *Orchestrator) Sync(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	integ, err := o.integrations.GetByID(ctx, req.POSIntegrationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrIntegrationNotFound, req.POSIntegrationID)
		}
		return nil, err
	}
	if integ.Status != integration.StatusActive {
		return nil, fmt.Errorf("%w: integration %s is %s", ErrIntegrationNotFound, integ.ID, integ.Status)
	}
	// The caller may only sync through integrations they own. The same
	// error as a missing row, so probing ids reveals nothing.
	if req.MerchantID != "" && req.MerchantID != integ.MerchantID.String() {
		return nil, fmt.Errorf("%w: %s", ErrIntegrationNotFound, req.POSIntegrationID)
	}

	p := Provider(integ.Provider)
	adapter, ok := o.registry[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, integ.Provider)
	}

	tx, err := o.loadOrBuild(ctx, req, integ)
	if err != nil {
		return nil, err
	}

	token, err := o.tokens.AccessToken(ctx, req.POSIntegrationID)
	if err != nil {
		return nil, err
	}
	creds := Credentials{AccessToken: token, ExternalStoreID: integ.ExternalStoreID}

	externalID, err := adapter.PushOrder(ctx, o.client, creds, tx)
	if errors.Is(err, ErrTokenExpired) {
		// Exactly one refresh and one retry; a second expiry means the
		// credential is dead and the merchant has to reconnect.
		token, rerr := o.tokens.RefreshAccessToken(ctx, req.POSIntegrationID)
		if rerr != nil {
			return nil, fmt.Errorf("%w: %v", ErrAuthExpired, rerr)
		}
		creds.AccessToken = token
		externalID, err = adapter.PushOrder(ctx, o.client, creds, tx)
		if errors.Is(err, ErrTokenExpired) {
			return nil, fmt.Errorf("%w: retry after refresh also rejected", ErrAuthExpired)
		}
	}
	if err != nil {
		return nil, err
	}

	if err := o.store.MarkSynced(ctx, tx.ID.String(), externalID); err != nil {
		return nil, err
	}

	return &SyncResult{
		Success:          true,
		POSTransactionID: externalID,
		Provider:         p,
		Details:          fmt.Sprintf("synced %.2f (%.2f barter) to %s", tx.TotalAmount, tx.BarterAmount, p),
	}, nil
}

// loadOrBuild fetches the referenced local transaction, or materialises
// one from the request payload when the transaction originated at
// checkout and has no stored row yet.
func (o *Orchestrator) loadOrBuild(ctx context.Context, req SyncRequest, integ *integration.POSIntegration) (*PosTransaction, error) {
	if tx, err := o.store.GetByID(ctx, req.TransactionID); err == nil {
		return tx, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if req.Totals == nil {
		return nil, fmt.Errorf("transaction %s not found and no totals supplied", req.TransactionID)
	}
	merchantID, err := uuid.Parse(req.MerchantID)
	if err != nil {
		return nil, fmt.Errorf("invalid merchant_id: %w", err)
	}

	id := uuid.New()
	pct := 0.0
	if req.Totals.Total > 0 {
		pct = req.Totals.BarterAmount / req.Totals.Total * 100
	}
	tx := &PosTransaction{
		ID:       id,
		Provider: Provider(integ.Provider),
		// Placeholder until the provider assigns the real id on sync.
		ExternalTransactionID: "local-" + id.String(),
		MerchantID:            merchantID,
		IntegrationID:         integ.ID,
		TotalAmount:           req.Totals.Total,
		Currency:              "USD",
		TaxAmount:             req.Totals.TaxAmount,
		BarterAmount:          req.Totals.BarterAmount,
		BarterPercentage:      pct,
		CashAmount:            req.Totals.CashAmount,
		Items:                 req.Items,
		TransactionDate:       time.Now(),
		Status:                TxCompleted,
		SyncStatus:            SyncUnsynced,
	}
	if _, err := o.store.CreateIfAbsent(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}
