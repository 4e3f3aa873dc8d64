package pos

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// shopifyAdapter speaks Shopify order webhooks and the Admin REST API.
// The shop domain doubles as the merchant key and as the API host, so
// the adapter carries no base URL of its own.
type shopifyAdapter struct{}

func (a *shopifyAdapter) Provider() Provider { return ProviderShopify }

func (a *shopifyAdapter) VerifySignature(secret string, body []byte, headers http.Header) bool {
	sig := headers.Get("x-shopify-hmac-sha256")
	if sig == "" {
		return false
	}
	return signaturesEqual(hmacSHA256Base64(secret, body), sig)
}

type shopifyOrder struct {
	ID             int64  `json:"id"`
	TotalPrice     string `json:"total_price"`
	TotalTax       string `json:"total_tax"`
	TotalDiscounts string `json:"total_discounts"`
	Currency       string `json:"currency"`
	CreatedAt      string `json:"created_at"`
	LineItems      []struct {
		Title    string `json:"title"`
		SKU      string `json:"sku"`
		Price    string `json:"price"`
		Quantity int    `json:"quantity"`
	} `json:"line_items"`
}

func (a *shopifyAdapter) Normalize(body []byte, headers http.Header) (*NormalizedEvent, error) {
	var o shopifyOrder
	if err := json.Unmarshal(body, &o); err != nil {
		return nil, fmt.Errorf("shopify payload: %w", err)
	}
	if o.ID == 0 {
		return nil, fmt.Errorf("shopify payload: missing order id")
	}

	shop := headers.Get("x-shopify-shop-domain")
	if shop == "" {
		return nil, fmt.Errorf("shopify payload: missing shop domain header")
	}

	ev := &NormalizedEvent{
		ExternalID:     strconv.FormatInt(o.ID, 10),
		MerchantKey:    shop,
		Currency:       o.Currency,
		TotalAmount:    parseMoney(o.TotalPrice),
		TaxAmount:      parseMoney(o.TotalTax),
		DiscountAmount: parseMoney(o.TotalDiscounts),
	}
	if t, err := time.Parse(time.RFC3339, o.CreatedAt); err == nil {
		ev.TransactionDate = t
	} else {
		ev.TransactionDate = time.Now()
	}
	for _, li := range o.LineItems {
		ev.Items = append(ev.Items, LineItem{
			Name:      li.Title,
			SKU:       li.SKU,
			UnitPrice: parseMoney(li.Price),
			Quantity:  li.Quantity,
		})
	}
	return ev, nil
}

func (a *shopifyAdapter) PushOrder(ctx context.Context, client *http.Client, creds Credentials, tx *PosTransaction) (string, error) {
	headers := map[string]string{"X-Shopify-Access-Token": creds.AccessToken}

	lineItems := make([]map[string]interface{}, 0, len(tx.Items))
	for _, li := range tx.Items {
		lineItems = append(lineItems, map[string]interface{}{
			"title":    li.Name,
			"sku":      li.SKU,
			"price":    fmt.Sprintf("%.2f", li.UnitPrice),
			"quantity": li.Quantity,
		})
	}

	// Shopify supports multiple transactions per order, so cash and
	// barter go out as distinct tenders.
	transactions := []map[string]interface{}{}
	if cash := tx.CashAmount + tx.CardAmount; cash > 0 {
		transactions = append(transactions, map[string]interface{}{
			"kind":    "sale",
			"status":  "success",
			"gateway": "manual",
			"amount":  fmt.Sprintf("%.2f", cash),
		})
	}
	if tx.BarterAmount > 0 {
		transactions = append(transactions, map[string]interface{}{
			"kind":    "sale",
			"status":  "success",
			"gateway": "Barter Credits",
			"amount":  fmt.Sprintf("%.2f", tx.BarterAmount),
		})
	}

	body := map[string]interface{}{
		"order": map[string]interface{}{
			"line_items":       lineItems,
			"currency":         tx.Currency,
			"financial_status": "paid",
			"transactions":     transactions,
			"note":             fmt.Sprintf("Barter settlement: %.2f credits applied", tx.BarterAmount),
		},
	}

	url := fmt.Sprintf("https://%s/admin/api/2024-01/orders.json", creds.ExternalStoreID)
	out, err := callProvider(ctx, client, ProviderShopify, http.MethodPost, url, headers, body)
	if err != nil {
		return "", err
	}
	var resp struct {
		Order struct {
			ID int64 `json:"id"`
		} `json:"order"`
	}
	if err := json.Unmarshal(out, &resp); err != nil || resp.Order.ID == 0 {
		return "", fmt.Errorf("shopify order response missing id")
	}
	return strconv.FormatInt(resp.Order.ID, 10), nil
}

func parseMoney(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
