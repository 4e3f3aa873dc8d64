package pos

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// lightspeedAdapter speaks Lightspeed Retail webhooks and API.
// Lightspeed posts webhooks form-encoded with the event JSON in a
// `payload` field; Normalize accepts both that and plain JSON.
type lightspeedAdapter struct {
	base string
}

func (a *lightspeedAdapter) Provider() Provider { return ProviderLightspeed }

func (a *lightspeedAdapter) VerifySignature(secret string, body []byte, headers http.Header) bool {
	sig := headers.Get("x-lightspeed-signature")
	if sig == "" {
		sig = headers.Get("hmacSignature")
	}
	if sig == "" {
		return false
	}
	return signaturesEqual(hmacSHA256Hex(secret, body), sig)
}

type lightspeedSale struct {
	SaleID    string  `json:"saleID"`
	AccountID string  `json:"accountID"`
	Total     float64 `json:"total"`
	Tax       float64 `json:"tax"`
	Currency  string  `json:"currency"`
	TimeStamp string  `json:"timeStamp"`
	SaleLines []struct {
		Description string  `json:"description"`
		UnitPrice   float64 `json:"unitPrice"`
		UnitQty     int     `json:"unitQuantity"`
		UPC         string  `json:"upc"`
	} `json:"saleLines"`
}

func (a *lightspeedAdapter) Normalize(body []byte, headers http.Header) (*NormalizedEvent, error) {
	raw := body
	// Form-encoded delivery wraps the JSON in payload=...
	if strings.Contains(string(body), "payload=") && !strings.HasPrefix(strings.TrimSpace(string(body)), "{") {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("lightspeed form payload: %w", err)
		}
		raw = []byte(values.Get("payload"))
	}

	var sale lightspeedSale
	if err := json.Unmarshal(raw, &sale); err != nil {
		return nil, fmt.Errorf("lightspeed payload: %w", err)
	}
	if sale.SaleID == "" || sale.AccountID == "" {
		return nil, fmt.Errorf("lightspeed payload: missing sale or account id")
	}

	ev := &NormalizedEvent{
		ExternalID:  sale.SaleID,
		MerchantKey: sale.AccountID,
		Currency:    sale.Currency,
		TotalAmount: sale.Total,
		TaxAmount:   sale.Tax,
	}
	if t, err := time.Parse(time.RFC3339, sale.TimeStamp); err == nil {
		ev.TransactionDate = t
	} else {
		ev.TransactionDate = time.Now()
	}
	for _, line := range sale.SaleLines {
		qty := line.UnitQty
		if qty == 0 {
			qty = 1
		}
		ev.Items = append(ev.Items, LineItem{
			Name:      line.Description,
			Barcode:   line.UPC,
			UnitPrice: line.UnitPrice,
			Quantity:  qty,
		})
	}
	return ev, nil
}

func (a *lightspeedAdapter) PushOrder(ctx context.Context, client *http.Client, creds Credentials, tx *PosTransaction) (string, error) {
	headers := map[string]string{"Authorization": "Bearer " + creds.AccessToken}

	lines := make([]map[string]interface{}, 0, len(tx.Items))
	for _, li := range tx.Items {
		lines = append(lines, map[string]interface{}{
			"description":  li.Name,
			"unitPrice":    li.UnitPrice,
			"unitQuantity": li.Quantity,
		})
	}

	// Lightspeed models tenders as SalePayments; barter rides on its own
	// payment type alongside the cash entry.
	payments := []map[string]interface{}{}
	if cash := tx.CashAmount + tx.CardAmount; cash > 0 {
		payments = append(payments, map[string]interface{}{
			"amount":      cash,
			"paymentType": map[string]string{"name": "Cash"},
		})
	}
	if tx.BarterAmount > 0 {
		payments = append(payments, map[string]interface{}{
			"amount":      tx.BarterAmount,
			"paymentType": map[string]string{"name": "Barter Credits"},
		})
	}

	body := map[string]interface{}{
		"completed":    true,
		"total":        tx.TotalAmount,
		"tax":          tx.TaxAmount,
		"saleLines":    lines,
		"salePayments": payments,
	}
	endpoint := fmt.Sprintf("%s/API/V3/Account/%s/Sale.json", a.base, creds.ExternalStoreID)
	out, err := callProvider(ctx, client, ProviderLightspeed, http.MethodPost, endpoint, headers, body)
	if err != nil {
		return "", err
	}
	var resp struct {
		SaleID string `json:"saleID"`
	}
	if err := json.Unmarshal(out, &resp); err != nil || resp.SaleID == "" {
		return "", fmt.Errorf("lightspeed sale response missing id")
	}
	return resp.SaleID, nil
}
