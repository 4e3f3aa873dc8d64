package integration

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrStateInvalid means the callback state token is unknown or was
	// already consumed.
	ErrStateInvalid = errors.New("invalid or already used oauth state")
	// ErrStateExpired means the state token existed but is past its expiry.
	ErrStateExpired = errors.New("oauth state expired")
	// ErrUnknownProvider means no OAuth configuration exists for the provider.
	ErrUnknownProvider = errors.New("unknown oauth provider")
	// ErrReconnectRequired means a refresh failed and the merchant must
	// re-link the integration. No automatic retries follow.
	ErrReconnectRequired = errors.New("token refresh failed, reconnect required")
)

const stateTTL = 10 * time.Minute

// ProviderConfig holds the OAuth endpoints and credentials for one provider.
// URLs may contain a {shop} placeholder, filled from the shop domain
// (Shopify routes OAuth through the shop's own host).
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	AuthorizeURL string
	TokenURL     string
	MerchantURL  string // endpoint returning the provider's store/merchant id
	RedirectURI  string
	Scopes       []string
}

// InitiateResult is handed back to the caller for the browser redirect.
type InitiateResult struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}

// Manager owns the OAuth lifecycle for POS integrations: CSRF state,
// code exchange, encrypted token storage, and refresh-on-expiry. It is
// the only component that sees decrypted tokens.
type Manager struct {
	repo      Repository
	cipher    *TokenCipher
	client    *http.Client
	providers map[string]ProviderConfig

	defaultBarterPct float64

	mu           sync.Mutex
	refreshLocks map[string]*sync.Mutex
}

func NewManager(repo Repository, cipher *TokenCipher, client *http.Client, providers map[string]ProviderConfig, defaultBarterPct float64) *Manager {
	return &Manager{
		repo:             repo,
		cipher:           cipher,
		client:           client,
		providers:        providers,
		defaultBarterPct: defaultBarterPct,
		refreshLocks:     map[string]*sync.Mutex{},
	}
}

// Initiate issues a single-use state token and builds the provider
// authorization URL for the merchant redirect.
func (m *Manager) Initiate(ctx context.Context, merchantID uuid.UUID, provider, shopDomain string) (*InitiateResult, error) {
	cfg, ok := m.providers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	token := hex.EncodeToString(raw)

	st := &OAuthState{
		StateToken: token,
		MerchantID: merchantID,
		Provider:   provider,
		ExpiresAt:  time.Now().Add(stateTTL),
	}
	if err := m.repo.CreateState(ctx, st); err != nil {
		return nil, err
	}

	authorize := fillShop(cfg.AuthorizeURL, shopDomain)
	q := url.Values{}
	q.Set("client_id", cfg.ClientID)
	q.Set("response_type", "code")
	q.Set("state", token)
	if cfg.RedirectURI != "" {
		q.Set("redirect_uri", cfg.RedirectURI)
	}
	if len(cfg.Scopes) > 0 {
		q.Set("scope", strings.Join(cfg.Scopes, " "))
	}

	sep := "?"
	if strings.Contains(authorize, "?") {
		sep = "&"
	}
	return &InitiateResult{
		AuthorizationURL: authorize + sep + q.Encode(),
		State:            token,
	}, nil
}

// HandleCallback validates and consumes the state, exchanges the code
// for tokens, resolves the provider store id, and upserts the
// integration as active.
func (m *Manager) HandleCallback(ctx context.Context, code, state, shopDomain string) (*POSIntegration, error) {
	if code == "" || state == "" {
		return nil, fmt.Errorf("%w: code and state are required", ErrStateInvalid)
	}

	st, err := m.repo.ConsumeState(ctx, state)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStateInvalid
		}
		return nil, err
	}
	if time.Now().After(st.ExpiresAt) {
		return nil, ErrStateExpired
	}

	cfg, ok := m.providers[st.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, st.Provider)
	}

	tokens, err := m.exchange(ctx, cfg, shopDomain, url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {cfg.ClientID},
		"client_secret": {cfg.ClientSecret},
		"redirect_uri":  {cfg.RedirectURI},
	})
	if err != nil {
		return nil, fmt.Errorf("code exchange for %s: %w", st.Provider, err)
	}

	// A provider that routes OAuth through the shop's own host already
	// identified the store: the domain is both the webhook routing key
	// and the API host, and must not be replaced by a numeric id.
	storeID := shopDomain
	if storeID == "" && cfg.MerchantURL != "" {
		if id, err := m.fetchStoreID(ctx, cfg, shopDomain, tokens.AccessToken); err == nil && id != "" {
			storeID = id
		}
	}

	encAccess, err := m.cipher.Encrypt(tokens.AccessToken)
	if err != nil {
		return nil, err
	}
	encRefresh := ""
	if tokens.RefreshToken != "" {
		if encRefresh, err = m.cipher.Encrypt(tokens.RefreshToken); err != nil {
			return nil, err
		}
	}

	in := &POSIntegration{
		ID:               uuid.New(),
		MerchantID:       st.MerchantID,
		Provider:         st.Provider,
		AuthMethod:       AuthOAuth,
		AccessToken:      encAccess,
		RefreshToken:     encRefresh,
		TokenExpiresAt:   tokens.ExpiresAt,
		ExternalStoreID:  storeID,
		Status:           StatusActive,
		BarterPercentage: m.defaultBarterPct,
		Scopes:           cfg.Scopes,
	}
	if err := m.repo.Upsert(ctx, in); err != nil {
		return nil, err
	}
	return in, nil
}

// SaveAPIKey stores a manually entered provider key as an active
// integration (Clover and Lightspeed merchants often connect this way).
func (m *Manager) SaveAPIKey(ctx context.Context, merchantID uuid.UUID, provider, apiKey, externalStoreID string, barterPct float64) (*POSIntegration, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api_key is required")
	}
	enc, err := m.cipher.Encrypt(apiKey)
	if err != nil {
		return nil, err
	}
	if barterPct <= 0 {
		barterPct = m.defaultBarterPct
	}
	in := &POSIntegration{
		ID:               uuid.New(),
		MerchantID:       merchantID,
		Provider:         provider,
		AuthMethod:       AuthAPIKey,
		AccessToken:      enc,
		ExternalStoreID:  externalStoreID,
		Status:           StatusActive,
		BarterPercentage: barterPct,
	}
	if err := m.repo.Upsert(ctx, in); err != nil {
		return nil, err
	}
	return in, nil
}

// Disconnect deactivates an integration. Tokens stay in place so a
// reconnect can reuse the row.
func (m *Manager) Disconnect(ctx context.Context, integrationID string) error {
	return m.repo.UpdateStatus(ctx, integrationID, StatusInactive)
}

// AccessToken decrypts the stored access token for a provider call.
func (m *Manager) AccessToken(ctx context.Context, integrationID string) (string, error) {
	in, err := m.repo.GetByID(ctx, integrationID)
	if err != nil {
		return "", err
	}
	return m.cipher.Decrypt(in.AccessToken)
}

// RefreshAccessToken refreshes an integration's tokens. Calls are
// serialised per integration; a caller that waited for another refresh
// re-reads the row and reuses the fresh token instead of issuing a
// second refresh that would invalidate the first.
func (m *Manager) RefreshAccessToken(ctx context.Context, integrationID string) (string, error) {
	lock := m.lockFor(integrationID)
	lock.Lock()
	defer lock.Unlock()

	in, err := m.repo.GetByID(ctx, integrationID)
	if err != nil {
		return "", err
	}
	if in.TokenExpiresAt != nil && time.Until(*in.TokenExpiresAt) > time.Minute {
		// Another caller already refreshed while we waited on the lock.
		return m.cipher.Decrypt(in.AccessToken)
	}
	if in.RefreshToken == "" {
		_ = m.repo.UpdateStatus(ctx, integrationID, StatusInactive)
		return "", fmt.Errorf("%w: no refresh token stored", ErrReconnectRequired)
	}

	cfg, ok := m.providers[in.Provider]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, in.Provider)
	}

	refresh, err := m.cipher.Decrypt(in.RefreshToken)
	if err != nil {
		return "", err
	}

	tokens, err := m.exchange(ctx, cfg, in.ExternalStoreID, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refresh},
		"client_id":     {cfg.ClientID},
		"client_secret": {cfg.ClientSecret},
	})
	if err != nil {
		_ = m.repo.UpdateStatus(ctx, integrationID, StatusInactive)
		return "", fmt.Errorf("%w: %v", ErrReconnectRequired, err)
	}

	encAccess, err := m.cipher.Encrypt(tokens.AccessToken)
	if err != nil {
		return "", err
	}
	newRefresh := tokens.RefreshToken
	if newRefresh == "" {
		newRefresh = refresh // provider rotated only the access token
	}
	encRefresh, err := m.cipher.Encrypt(newRefresh)
	if err != nil {
		return "", err
	}
	if err := m.repo.UpdateTokens(ctx, integrationID, encAccess, encRefresh, tokens.ExpiresAt); err != nil {
		return "", err
	}
	return tokens.AccessToken, nil
}

func (m *Manager) lockFor(integrationID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.refreshLocks[integrationID]
	if !ok {
		lock = &sync.Mutex{}
		m.refreshLocks[integrationID] = lock
	}
	return lock
}

// ── provider HTTP ─────────────────────────────────────────────────────────────

type tokenResponse struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

func (m *Manager) exchange(ctx context.Context, cfg ProviderConfig, shopDomain string, form url.Values) (*tokenResponse, error) {
	endpoint := fillShop(cfg.TokenURL, shopDomain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
		ExpiresAt    string `json:"expires_at"` // Square sends RFC3339
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if body.AccessToken == "" {
		return nil, fmt.Errorf("token endpoint returned no access_token")
	}

	out := &tokenResponse{AccessToken: body.AccessToken, RefreshToken: body.RefreshToken}
	if body.ExpiresIn > 0 {
		t := time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
		out.ExpiresAt = &t
	} else if body.ExpiresAt != "" {
		if t, err := time.Parse(time.RFC3339, body.ExpiresAt); err == nil {
			out.ExpiresAt = &t
		}
	}
	return out, nil
}

// fetchStoreID asks the provider API which merchant/location the new
// token belongs to, so inbound webhooks can be routed back to this row.
func (m *Manager) fetchStoreID(ctx context.Context, cfg ProviderConfig, shopDomain, accessToken string) (string, error) {
	endpoint := fillShop(cfg.MerchantURL, shopDomain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("merchant endpoint returned %d", resp.StatusCode)
	}

	var raw map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", err
	}
	return firstID(raw), nil
}

// firstID digs out the first plausible id field from a provider's
// merchant/location payload. Shapes differ per provider but all of them
// surface an "id" on the top object or on the first element of a list.
func firstID(raw map[string]interface{}) string {
	for _, key := range []string{"merchant", "shop", "restaurant"} {
		if obj, ok := raw[key].(map[string]interface{}); ok {
			if id := stringField(obj, "id", "merchant_id", "guid"); id != "" {
				return id
			}
		}
	}
	for _, key := range []string{"locations", "merchants", "elements"} {
		if list, ok := raw[key].([]interface{}); ok && len(list) > 0 {
			if obj, ok := list[0].(map[string]interface{}); ok {
				if id := stringField(obj, "id", "merchant_id"); id != "" {
					return id
				}
			}
		}
	}
	return stringField(raw, "id", "merchant_id", "account_id")
}

func stringField(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
		if v, ok := m[k].(float64); ok {
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

func fillShop(urlTemplate, shopDomain string) string {
	return strings.ReplaceAll(urlTemplate, "{shop}", shopDomain)
}
