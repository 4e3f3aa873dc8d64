package pos

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// adyenAdapter speaks Adyen standard notifications and the Checkout
// API. Adyen signs each notification item over an ordered concatenation
// of its fields rather than the raw body.
type adyenAdapter struct {
	base string
}

func (a *adyenAdapter) Provider() Provider { return ProviderAdyen }

type adyenNotification struct {
	NotificationItems []struct {
		Item adyenItem `json:"NotificationRequestItem"`
	} `json:"notificationItems"`
}

type adyenItem struct {
	PSPReference        string `json:"pspReference"`
	OriginalReference   string `json:"originalReference"`
	MerchantAccountCode string `json:"merchantAccountCode"`
	MerchantReference   string `json:"merchantReference"`
	EventCode           string `json:"eventCode"`
	Success             string `json:"success"`
	EventDate           string `json:"eventDate"`
	Amount              struct {
		Value    int64  `json:"value"`
		Currency string `json:"currency"`
	} `json:"amount"`
	AdditionalData struct {
		HmacSignature string `json:"hmacSignature"`
	} `json:"additionalData"`
}

// signingString is the ordered field concatenation Adyen signs.
func (it adyenItem) signingString() string {
	return strings.Join([]string{
		it.PSPReference,
		it.OriginalReference,
		it.MerchantAccountCode,
		it.MerchantReference,
		fmt.Sprintf("%d", it.Amount.Value),
		it.Amount.Currency,
		it.EventCode,
		it.Success,
	}, ":")
}

func (a *adyenAdapter) VerifySignature(secret string, body []byte, headers http.Header) bool {
	var n adyenNotification
	if err := json.Unmarshal(body, &n); err != nil || len(n.NotificationItems) == 0 {
		return false
	}
	for _, wrapped := range n.NotificationItems {
		it := wrapped.Item
		if it.AdditionalData.HmacSignature == "" {
			return false
		}
		expected := hmacSHA256Base64(secret, []byte(it.signingString()))
		if !signaturesEqual(expected, it.AdditionalData.HmacSignature) {
			return false
		}
	}
	return true
}

func (a *adyenAdapter) Normalize(body []byte, headers http.Header) (*NormalizedEvent, error) {
	var n adyenNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("adyen payload: %w", err)
	}
	if len(n.NotificationItems) == 0 {
		return nil, fmt.Errorf("adyen payload: no notification items")
	}
	it := n.NotificationItems[0].Item
	if it.PSPReference == "" || it.MerchantAccountCode == "" {
		return nil, fmt.Errorf("adyen payload: missing psp reference or merchant account")
	}

	ev := &NormalizedEvent{
		ExternalID:  it.PSPReference,
		MerchantKey: it.MerchantAccountCode,
		Currency:    it.Amount.Currency,
		TotalAmount: centsToDollars(it.Amount.Value),
	}
	if t, err := time.Parse(time.RFC3339, it.EventDate); err == nil {
		ev.TransactionDate = t
	} else {
		ev.TransactionDate = time.Now()
	}
	return ev, nil
}

func (a *adyenAdapter) PushOrder(ctx context.Context, client *http.Client, creds Credentials, tx *PosTransaction) (string, error) {
	headers := map[string]string{"X-API-Key": creds.AccessToken}

	body := map[string]interface{}{
		"merchantAccount": creds.ExternalStoreID,
		"reference":       fmt.Sprintf("barter-%s", uuid.New().String()),
		"amount": map[string]interface{}{
			"value":    dollarsToCents(tx.TotalAmount),
			"currency": tx.Currency,
		},
		"paymentMethod": map[string]string{"type": "externalsettlement"},
		"metadata": map[string]string{
			"barter_amount": fmt.Sprintf("%.2f", tx.BarterAmount),
			"cash_amount":   fmt.Sprintf("%.2f", tx.CashAmount+tx.CardAmount),
		},
	}
	out, err := callProvider(ctx, client, ProviderAdyen, http.MethodPost, a.base+"/v71/payments", headers, body)
	if err != nil {
		return "", err
	}
	var resp struct {
		PSPReference string `json:"pspReference"`
	}
	if err := json.Unmarshal(out, &resp); err != nil || resp.PSPReference == "" {
		return "", fmt.Errorf("adyen payment response missing pspReference")
	}
	return resp.PSPReference, nil
}
