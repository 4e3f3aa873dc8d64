package pos

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Adapter translates between one provider's wire formats and the
// canonical transaction shape. Adding a provider means adding one
// implementation and registering it; nothing else changes.
type Adapter interface {
	Provider() Provider
	// VerifySignature authenticates the raw webhook bytes and headers
	// against the shared secret.
	VerifySignature(secret string, body []byte, headers http.Header) bool
	// Normalize extracts the canonical event from a provider payload.
	Normalize(body []byte, headers http.Header) (*NormalizedEvent, error)
	// PushOrder mirrors a settled transaction into the provider's
	// ledger and returns the provider-assigned id.
	PushOrder(ctx context.Context, client *http.Client, creds Credentials, tx *PosTransaction) (string, error)
}

// Registry maps providers to their adapters, built once at startup.
type Registry map[Provider]Adapter

// NewRegistry registers the built-in adapters against their API base
// URLs (overridable for sandboxes and tests).
func NewRegistry(bases BaseURLs) Registry {
	return Registry{
		ProviderSquare:     &squareAdapter{base: bases.Square},
		ProviderShopify:    &shopifyAdapter{},
		ProviderClover:     &cloverAdapter{base: bases.Clover},
		ProviderToast:      &toastAdapter{base: bases.Toast},
		ProviderLightspeed: &lightspeedAdapter{base: bases.Lightspeed},
		ProviderAdyen:      &adyenAdapter{base: bases.Adyen},
	}
}

// BaseURLs are the provider API roots. Shopify has none because its API
// lives on the shop's own domain.
type BaseURLs struct {
	Square     string
	Clover     string
	Toast      string
	Lightspeed string
	Adyen      string
}

// DefaultBaseURLs point at the providers' production APIs.
func DefaultBaseURLs() BaseURLs {
	return BaseURLs{
		Square:     "https://connect.squareup.com",
		Clover:     "https://api.clover.com",
		Toast:      "https://ws-api.toasttab.com",
		Lightspeed: "https://api.lightspeedapp.com",
		Adyen:      "https://checkout-live.adyen.com",
	}
}

// ── signature helpers ─────────────────────────────────────────────────────────

func hmacSHA256Base64(secret string, msg []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func hmacSHA256Hex(secret string, msg []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}

func signaturesEqual(expected, got string) bool {
	return hmac.Equal([]byte(expected), []byte(got))
}

// ── outbound HTTP helpers ─────────────────────────────────────────────────────

// callProvider posts a JSON body and classifies the response: 401 and
// 403 become ErrTokenExpired (the refresh trigger), anything else
// non-2xx becomes a ProviderAPIError.
func callProvider(ctx context.Context, client *http.Client, provider Provider, method, url string, headers map[string]string, payload interface{}) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &ProviderAPIError{Provider: provider, StatusCode: 0, Body: err.Error()}
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrTokenExpired, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &ProviderAPIError{Provider: provider, StatusCode: resp.StatusCode, Body: truncate(string(out), 512)}
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// centsToDollars converts minor units to a float dollar amount.
func centsToDollars(cents int64) float64 {
	return float64(cents) / 100
}

func dollarsToCents(d float64) int64 {
	return int64(d*100 + 0.5)
}
