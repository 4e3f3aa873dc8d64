package pos

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// squareAdapter speaks Square's webhooks and Orders/Payments APIs.
// Square has no separate barter tender type, so the settled amount goes
// out as a single external tender with an explanatory note.
type squareAdapter struct {
	base string
}

func (a *squareAdapter) Provider() Provider { return ProviderSquare }

func (a *squareAdapter) VerifySignature(secret string, body []byte, headers http.Header) bool {
	sig := headers.Get("x-square-hmacsha256-signature")
	ts := headers.Get("x-square-hmacsha256-timestamp")
	if sig == "" || ts == "" {
		return false
	}
	msg := append([]byte(ts+"."), body...)
	return signaturesEqual(hmacSHA256Base64(secret, msg), sig)
}

type squareWebhook struct {
	MerchantID string `json:"merchant_id"`
	Type       string `json:"type"`
	Data       struct {
		Object struct {
			Payment struct {
				ID         string `json:"id"`
				LocationID string `json:"location_id"`
				CreatedAt  string `json:"created_at"`
				AmountMoney struct {
					Amount   int64  `json:"amount"`
					Currency string `json:"currency"`
				} `json:"amount_money"`
				TipMoney struct {
					Amount int64 `json:"amount"`
				} `json:"tip_money"`
				TaxMoney struct {
					Amount int64 `json:"amount"`
				} `json:"tax_money"`
				Order struct {
					LineItems []struct {
						Name     string `json:"name"`
						Quantity string `json:"quantity"`
						CatalogObjectID string `json:"catalog_object_id"`
						BasePriceMoney  struct {
							Amount int64 `json:"amount"`
						} `json:"base_price_money"`
					} `json:"line_items"`
				} `json:"order"`
			} `json:"payment"`
		} `json:"object"`
	} `json:"data"`
}

func (a *squareAdapter) Normalize(body []byte, headers http.Header) (*NormalizedEvent, error) {
	var wh squareWebhook
	if err := json.Unmarshal(body, &wh); err != nil {
		return nil, fmt.Errorf("square payload: %w", err)
	}
	p := wh.Data.Object.Payment
	if p.ID == "" {
		return nil, fmt.Errorf("square payload: missing payment id")
	}

	ev := &NormalizedEvent{
		ExternalID:  p.ID,
		MerchantKey: p.LocationID,
		LocationID:  p.LocationID,
		Currency:    p.AmountMoney.Currency,
		TotalAmount: centsToDollars(p.AmountMoney.Amount),
		TipAmount:   centsToDollars(p.TipMoney.Amount),
		TaxAmount:   centsToDollars(p.TaxMoney.Amount),
	}
	if t, err := time.Parse(time.RFC3339, p.CreatedAt); err == nil {
		ev.TransactionDate = t
	} else {
		ev.TransactionDate = time.Now()
	}
	for _, li := range p.Order.LineItems {
		qty := 1
		fmt.Sscanf(li.Quantity, "%d", &qty)
		ev.Items = append(ev.Items, LineItem{
			Name:      li.Name,
			SKU:       li.CatalogObjectID,
			UnitPrice: centsToDollars(li.BasePriceMoney.Amount),
			Quantity:  qty,
		})
	}
	return ev, nil
}

func (a *squareAdapter) PushOrder(ctx context.Context, client *http.Client, creds Credentials, tx *PosTransaction) (string, error) {
	headers := map[string]string{"Authorization": "Bearer " + creds.AccessToken}

	lineItems := make([]map[string]interface{}, 0, len(tx.Items))
	for _, li := range tx.Items {
		lineItems = append(lineItems, map[string]interface{}{
			"name":     li.Name,
			"quantity": fmt.Sprintf("%d", li.Quantity),
			"base_price_money": map[string]interface{}{
				"amount":   dollarsToCents(li.UnitPrice),
				"currency": tx.Currency,
			},
		})
	}

	orderBody := map[string]interface{}{
		"idempotency_key": uuid.New().String(),
		"order": map[string]interface{}{
			"location_id": creds.ExternalStoreID,
			"line_items":  lineItems,
		},
	}
	out, err := callProvider(ctx, client, ProviderSquare, http.MethodPost, a.base+"/v2/orders", headers, orderBody)
	if err != nil {
		return "", err
	}
	var orderResp struct {
		Order struct {
			ID string `json:"id"`
		} `json:"order"`
	}
	if err := json.Unmarshal(out, &orderResp); err != nil || orderResp.Order.ID == "" {
		return "", fmt.Errorf("square order response missing id")
	}

	// Second call: a single EXTERNAL tender carries the whole amount,
	// with the barter share recorded in the note.
	paymentBody := map[string]interface{}{
		"idempotency_key": uuid.New().String(),
		"source_id":       "EXTERNAL",
		"order_id":        orderResp.Order.ID,
		"location_id":     creds.ExternalStoreID,
		"amount_money": map[string]interface{}{
			"amount":   dollarsToCents(tx.TotalAmount),
			"currency": tx.Currency,
		},
		"external_details": map[string]interface{}{
			"type":   "OTHER",
			"source": "Barter settlement",
		},
		"note": fmt.Sprintf("Paid %.2f in barter credits, %.2f cash/card", tx.BarterAmount, tx.CashAmount+tx.CardAmount),
	}
	if _, err := callProvider(ctx, client, ProviderSquare, http.MethodPost, a.base+"/v2/payments", headers, paymentBody); err != nil {
		return "", err
	}
	return orderResp.Order.ID, nil
}
