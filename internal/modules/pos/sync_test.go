package pos

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/barterhq/barterhq-backend/internal/modules/integration"
)

type fakeAdapter struct {
	provider  Provider
	pushErrs  []error // consumed in order; nil entry means success
	pushCalls int
	seenToken []string
}

func (f *fakeAdapter) Provider() Provider { return f.provider }

func (f *fakeAdapter) VerifySignature(secret string, body []byte, headers http.Header) bool {
	return true
}

func (f *fakeAdapter) Normalize(body []byte, headers http.Header) (*NormalizedEvent, error) {
	return nil, errors.New("not used")
}

func (f *fakeAdapter) PushOrder(ctx context.Context, client *http.Client, creds Credentials, tx *PosTransaction) (string, error) {
	f.pushCalls++
	f.seenToken = append(f.seenToken, creds.AccessToken)
	if f.pushCalls <= len(f.pushErrs) && f.pushErrs[f.pushCalls-1] != nil {
		return "", f.pushErrs[f.pushCalls-1]
	}
	return "ext-123", nil
}

type fakeTokens struct {
	token        string
	refreshed    string
	refreshErr   error
	refreshCalls int
}

func (f *fakeTokens) AccessToken(ctx context.Context, integrationID string) (string, error) {
	return f.token, nil
}

func (f *fakeTokens) RefreshAccessToken(ctx context.Context, integrationID string) (string, error) {
	f.refreshCalls++
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	return f.refreshed, nil
}

type fakeLoader struct {
	integ *integration.POSIntegration
}

func (f *fakeLoader) GetByID(ctx context.Context, id string) (*integration.POSIntegration, error) {
	if f.integ == nil || f.integ.ID.String() != id {
		return nil, sql.ErrNoRows
	}
	return f.integ, nil
}

func activeIntegration(provider string) *integration.POSIntegration {
	return &integration.POSIntegration{
		ID:              uuid.New(),
		MerchantID:      uuid.New(),
		Provider:        provider,
		ExternalStoreID: "store-1",
		Status:          integration.StatusActive,
	}
}

func storedTransaction(store *memStore, integ *integration.POSIntegration) *PosTransaction {
	tx := &PosTransaction{
		ID:                    uuid.New(),
		Provider:              Provider(integ.Provider),
		ExternalTransactionID: "orig-1",
		MerchantID:            integ.MerchantID,
		IntegrationID:         integ.ID,
		TotalAmount:           80,
		Currency:              "USD",
		BarterAmount:          24,
		BarterPercentage:      30,
		CardAmount:            56,
		TransactionDate:       time.Now(),
		Status:                TxCompleted,
		SyncStatus:            SyncUnsynced,
	}
	store.CreateIfAbsent(context.Background(), tx)
	return tx
}

func TestSyncHappyPath(t *testing.T) {
	t.Parallel()

	integ := activeIntegration("square")
	store := newMemStore()
	tx := storedTransaction(store, integ)
	adapter := &fakeAdapter{provider: ProviderSquare}
	tokens := &fakeTokens{token: "tok-1"}
	o := NewOrchestrator(Registry{ProviderSquare: adapter}, store, &fakeLoader{integ: integ}, tokens, nil)

	res, err := o.Sync(context.Background(), SyncRequest{
		TransactionID:    tx.ID.String(),
		POSIntegrationID: integ.ID.String(),
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "ext-123", res.POSTransactionID)
	require.Equal(t, 1, adapter.pushCalls)
	require.Equal(t, 0, tokens.refreshCalls)

	got, err := store.GetByID(context.Background(), tx.ID.String())
	require.NoError(t, err)
	require.Equal(t, SyncSynced, got.SyncStatus)
	require.Equal(t, "ext-123", got.ExternalTransactionID)
}

func TestSyncRefreshesOnceAndRetries(t *testing.T) {
	t.Parallel()

	integ := activeIntegration("square")
	store := newMemStore()
	tx := storedTransaction(store, integ)
	adapter := &fakeAdapter{provider: ProviderSquare, pushErrs: []error{ErrTokenExpired, nil}}
	tokens := &fakeTokens{token: "stale", refreshed: "fresh"}
	o := NewOrchestrator(Registry{ProviderSquare: adapter}, store, &fakeLoader{integ: integ}, tokens, nil)

	res, err := o.Sync(context.Background(), SyncRequest{
		TransactionID:    tx.ID.String(),
		POSIntegrationID: integ.ID.String(),
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, 2, adapter.pushCalls)
	require.Equal(t, 1, tokens.refreshCalls)
	require.Equal(t, []string{"stale", "fresh"}, adapter.seenToken)
}

func TestSyncSecondExpiryIsAuthExpired(t *testing.T) {
	t.Parallel()

	integ := activeIntegration("square")
	store := newMemStore()
	tx := storedTransaction(store, integ)
	adapter := &fakeAdapter{provider: ProviderSquare, pushErrs: []error{ErrTokenExpired, ErrTokenExpired}}
	tokens := &fakeTokens{token: "stale", refreshed: "fresh"}
	o := NewOrchestrator(Registry{ProviderSquare: adapter}, store, &fakeLoader{integ: integ}, tokens, nil)

	_, err := o.Sync(context.Background(), SyncRequest{
		TransactionID:    tx.ID.String(),
		POSIntegrationID: integ.ID.String(),
	})
	require.ErrorIs(t, err, ErrAuthExpired)
	// No third attempt after the single retry.
	require.Equal(t, 2, adapter.pushCalls)
	require.Equal(t, 1, tokens.refreshCalls)
}

func TestSyncRefreshFailureIsAuthExpired(t *testing.T) {
	t.Parallel()

	integ := activeIntegration("square")
	store := newMemStore()
	tx := storedTransaction(store, integ)
	adapter := &fakeAdapter{provider: ProviderSquare, pushErrs: []error{ErrTokenExpired}}
	tokens := &fakeTokens{token: "stale", refreshErr: integration.ErrReconnectRequired}
	o := NewOrchestrator(Registry{ProviderSquare: adapter}, store, &fakeLoader{integ: integ}, tokens, nil)

	_, err := o.Sync(context.Background(), SyncRequest{
		TransactionID:    tx.ID.String(),
		POSIntegrationID: integ.ID.String(),
	})
	require.ErrorIs(t, err, ErrAuthExpired)
	require.Equal(t, 1, adapter.pushCalls)
}

func TestSyncRejectsForeignMerchant(t *testing.T) {
	t.Parallel()

	integ := activeIntegration("square")
	store := newMemStore()
	tx := storedTransaction(store, integ)
	adapter := &fakeAdapter{provider: ProviderSquare}
	o := NewOrchestrator(Registry{ProviderSquare: adapter}, store, &fakeLoader{integ: integ}, &fakeTokens{token: "t"}, nil)

	// A different merchant naming someone else's integration is told the
	// integration does not exist, and nothing is pushed.
	_, err := o.Sync(context.Background(), SyncRequest{
		TransactionID:    tx.ID.String(),
		MerchantID:       uuid.New().String(),
		POSIntegrationID: integ.ID.String(),
	})
	require.ErrorIs(t, err, ErrIntegrationNotFound)
	require.Equal(t, 0, adapter.pushCalls)

	// The owner goes through.
	res, err := o.Sync(context.Background(), SyncRequest{
		TransactionID:    tx.ID.String(),
		MerchantID:       integ.MerchantID.String(),
		POSIntegrationID: integ.ID.String(),
	})
	require.NoError(t, err)
	require.True(t, res.Success)
}

func TestSyncInactiveIntegrationRejected(t *testing.T) {
	t.Parallel()

	integ := activeIntegration("square")
	integ.Status = integration.StatusInactive
	o := NewOrchestrator(Registry{ProviderSquare: &fakeAdapter{provider: ProviderSquare}},
		newMemStore(), &fakeLoader{integ: integ}, &fakeTokens{token: "t"}, nil)

	_, err := o.Sync(context.Background(), SyncRequest{
		TransactionID:    uuid.New().String(),
		POSIntegrationID: integ.ID.String(),
	})
	require.ErrorIs(t, err, ErrIntegrationNotFound)
}

func TestSyncBuildsTransactionFromTotals(t *testing.T) {
	t.Parallel()

	integ := activeIntegration("square")
	store := newMemStore()
	adapter := &fakeAdapter{provider: ProviderSquare}
	o := NewOrchestrator(Registry{ProviderSquare: adapter}, store, &fakeLoader{integ: integ}, &fakeTokens{token: "t"}, nil)

	res, err := o.Sync(context.Background(), SyncRequest{
		TransactionID:    uuid.New().String(), // unknown locally
		MerchantID:       integ.MerchantID.String(),
		POSIntegrationID: integ.ID.String(),
		Items:            []LineItem{{Name: "Latte", Quantity: 2, UnitPrice: 5}},
		Totals:           &SyncTotals{Total: 10, BarterAmount: 3, CashAmount: 7},
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, 1, store.count())

	// The materialised row ends up synced under the provider-assigned id.
	tx, err := store.GetByExternalID(context.Background(), ProviderSquare, "ext-123")
	require.NoError(t, err)
	require.Equal(t, SyncSynced, tx.SyncStatus)
	require.Equal(t, 30.0, tx.BarterPercentage)
	require.False(t, strings.HasPrefix(tx.ExternalTransactionID, "local-"))
}
