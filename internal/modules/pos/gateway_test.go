package pos

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/barterhq/barterhq-backend/internal/modules/integration"
)

// ── fakes ─────────────────────────────────────────────────────────────────────

type memStore struct {
	mu   sync.Mutex
	byID map[string]*PosTransaction
	keys map[string]bool // provider + external id
}

func newMemStore() *memStore {
	return &memStore{byID: map[string]*PosTransaction{}, keys: map[string]bool{}}
}

func (s *memStore) CreateIfAbsent(ctx context.Context, tx *PosTransaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := string(tx.Provider) + "|" + tx.ExternalTransactionID
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	s.byID[tx.ID.String()] = tx
	return true, nil
}

func (s *memStore) GetByID(ctx context.Context, id string) (*PosTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx, ok := s.byID[id]; ok {
		return tx, nil
	}
	return nil, sql.ErrNoRows
}

func (s *memStore) GetByExternalID(ctx context.Context, provider Provider, externalID string) (*PosTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.byID {
		if tx.Provider == provider && tx.ExternalTransactionID == externalID {
			return tx, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memStore) ListByMerchant(ctx context.Context, merchantID string) ([]*PosTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*PosTransaction
	for _, tx := range s.byID {
		if tx.MerchantID.String() == merchantID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *memStore) MarkSynced(ctx context.Context, id, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	tx.ExternalTransactionID = externalID
	tx.SyncStatus = SyncSynced
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

type fakeResolver struct {
	integ *integration.POSIntegration
}

func (f *fakeResolver) GetByProviderStore(ctx context.Context, provider, externalStoreID string) (*integration.POSIntegration, error) {
	if f.integ != nil && f.integ.ExternalStoreID == externalStoreID {
		return f.integ, nil
	}
	return nil, sql.ErrNoRows
}

func testIntegration(storeID string) *integration.POSIntegration {
	return &integration.POSIntegration{
		ID:               uuid.New(),
		MerchantID:       uuid.New(),
		Provider:         "square",
		ExternalStoreID:  storeID,
		Status:           integration.StatusActive,
		BarterPercentage: 30,
	}
}

func squareBodyAndHeaders(t *testing.T, secret, paymentID, locationID string) ([]byte, http.Header) {
	t.Helper()
	body := []byte(`{"merchant_id":"M1","type":"payment.created","data":{"object":{"payment":{
		"id":"` + paymentID + `","location_id":"` + locationID + `","created_at":"2026-08-01T10:00:00Z",
		"amount_money":{"amount":10000,"currency":"USD"},"tip_money":{"amount":250}}}}}`)
	h := http.Header{}
	h.Set("x-square-hmacsha256-timestamp", "1700000000")
	h.Set("x-square-hmacsha256-signature", b64mac(secret, append([]byte("1700000000."), body...)))
	return body, h
}

func newTestGateway(store *memStore, resolver *fakeResolver, secret string) *Gateway {
	return NewGateway(NewRegistry(DefaultBaseURLs()), resolver, store,
		map[Provider]string{ProviderSquare: secret}, false)
}

// ── tests ─────────────────────────────────────────────────────────────────────

func TestGatewayPersistsTransactionWithSplit(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	integ := testIntegration("L1")
	g := newTestGateway(store, &fakeResolver{integ: integ}, "secret")

	body, h := squareBodyAndHeaders(t, "secret", "pay-1", "L1")
	res, err := g.HandleWebhook(context.Background(), "square", body, h)
	require.NoError(t, err)
	require.False(t, res.Duplicate)
	require.NotEmpty(t, res.TransactionID)

	tx, err := store.GetByExternalID(context.Background(), ProviderSquare, "pay-1")
	require.NoError(t, err)
	require.Equal(t, 100.00, tx.TotalAmount)
	require.Equal(t, 30.00, tx.BarterAmount)
	require.Equal(t, 70.00, tx.CardAmount)
	require.Equal(t, integ.MerchantID, tx.MerchantID)
	// The tip rides on the transaction record; the tenders split the
	// total alone.
	require.Equal(t, 2.50, tx.TipAmount)
	require.InDelta(t, tx.TotalAmount, tx.BarterAmount+tx.CardAmount+tx.CashAmount, 0.01)
}

func TestGatewayDuplicateDelivery(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	g := newTestGateway(store, &fakeResolver{integ: testIntegration("L1")}, "secret")
	body, h := squareBodyAndHeaders(t, "secret", "pay-dup", "L1")

	res, err := g.HandleWebhook(context.Background(), "square", body, h)
	require.NoError(t, err)
	require.False(t, res.Duplicate)

	res, err = g.HandleWebhook(context.Background(), "square", body, h)
	require.NoError(t, err)
	require.True(t, res.Duplicate)
	require.Equal(t, 1, store.count())
}

func TestGatewayInvalidSignatureNoPersistence(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	g := newTestGateway(store, &fakeResolver{integ: testIntegration("L1")}, "secret")
	body, h := squareBodyAndHeaders(t, "wrong-secret", "pay-2", "L1")

	_, err := g.HandleWebhook(context.Background(), "square", body, h)
	require.ErrorIs(t, err, ErrSignatureInvalid)
	require.Equal(t, 0, store.count())
}

func TestGatewayUnsupportedProvider(t *testing.T) {
	t.Parallel()

	g := newTestGateway(newMemStore(), &fakeResolver{}, "secret")
	_, err := g.HandleWebhook(context.Background(), "vendasta", nil, http.Header{})
	require.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestGatewayIntegrationNotFound(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	g := newTestGateway(store, &fakeResolver{integ: testIntegration("L-other")}, "secret")
	body, h := squareBodyAndHeaders(t, "secret", "pay-3", "L1")

	_, err := g.HandleWebhook(context.Background(), "square", body, h)
	require.ErrorIs(t, err, ErrIntegrationNotFound)
	require.Equal(t, 0, store.count())
}

func TestGatewayMissingSecretPolicy(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	resolver := &fakeResolver{integ: testIntegration("L1")}
	body, h := squareBodyAndHeaders(t, "anything", "pay-4", "L1")

	// Fail-closed by default: no secret means reject.
	closed := NewGateway(NewRegistry(DefaultBaseURLs()), resolver, store, map[Provider]string{}, false)
	_, err := closed.HandleWebhook(context.Background(), "square", body, h)
	require.ErrorIs(t, err, ErrSignatureInvalid)
	require.Equal(t, 0, store.count())

	// Explicit sandbox override admits the unsigned delivery.
	open := NewGateway(NewRegistry(DefaultBaseURLs()), resolver, store, map[Provider]string{}, true)
	res, err := open.HandleWebhook(context.Background(), "square", body, h)
	require.NoError(t, err)
	require.NotEmpty(t, res.TransactionID)
}
