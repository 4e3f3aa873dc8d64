package pos

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// toastAdapter speaks Toast order webhooks and the orders API. Toast
// supports an "other" payment type, which carries the barter tender.
type toastAdapter struct {
	base string
}

func (a *toastAdapter) Provider() Provider { return ProviderToast }

func (a *toastAdapter) VerifySignature(secret string, body []byte, headers http.Header) bool {
	sig := headers.Get("toast-signature")
	if sig == "" {
		return false
	}
	return signaturesEqual(hmacSHA256Hex(secret, body), sig)
}

type toastWebhook struct {
	RestaurantGUID string `json:"restaurantGuid"`
	GUID           string `json:"guid"`
	PaidDate       string `json:"paidDate"`
	Checks         []struct {
		TotalAmount float64 `json:"totalAmount"`
		TaxAmount   float64 `json:"taxAmount"`
		TipAmount   float64 `json:"tipAmount"`
		Selections  []struct {
			DisplayName string  `json:"displayName"`
			Price       float64 `json:"price"`
			Quantity    int     `json:"quantity"`
		} `json:"selections"`
	} `json:"checks"`
}

func (a *toastAdapter) Normalize(body []byte, headers http.Header) (*NormalizedEvent, error) {
	var wh toastWebhook
	if err := json.Unmarshal(body, &wh); err != nil {
		return nil, fmt.Errorf("toast payload: %w", err)
	}
	if wh.GUID == "" || wh.RestaurantGUID == "" {
		return nil, fmt.Errorf("toast payload: missing order or restaurant guid")
	}

	ev := &NormalizedEvent{
		ExternalID:  wh.GUID,
		MerchantKey: wh.RestaurantGUID,
		Currency:    "USD",
	}
	if t, err := time.Parse(time.RFC3339, wh.PaidDate); err == nil {
		ev.TransactionDate = t
	} else {
		ev.TransactionDate = time.Now()
	}
	for _, check := range wh.Checks {
		ev.TotalAmount += check.TotalAmount
		ev.TaxAmount += check.TaxAmount
		ev.TipAmount += check.TipAmount
		for _, sel := range check.Selections {
			qty := sel.Quantity
			if qty == 0 {
				qty = 1
			}
			ev.Items = append(ev.Items, LineItem{
				Name:      sel.DisplayName,
				UnitPrice: sel.Price,
				Quantity:  qty,
			})
		}
	}
	return ev, nil
}

func (a *toastAdapter) PushOrder(ctx context.Context, client *http.Client, creds Credentials, tx *PosTransaction) (string, error) {
	headers := map[string]string{
		"Authorization":                "Bearer " + creds.AccessToken,
		"Toast-Restaurant-External-ID": creds.ExternalStoreID,
	}

	selections := make([]map[string]interface{}, 0, len(tx.Items))
	for _, li := range tx.Items {
		selections = append(selections, map[string]interface{}{
			"displayName": li.Name,
			"price":       li.UnitPrice,
			"quantity":    li.Quantity,
		})
	}

	payments := []map[string]interface{}{}
	if cash := tx.CashAmount + tx.CardAmount; cash > 0 {
		payments = append(payments, map[string]interface{}{
			"type":   "CASH",
			"amount": cash,
		})
	}
	if tx.BarterAmount > 0 {
		payments = append(payments, map[string]interface{}{
			"type":             "OTHER",
			"amount":           tx.BarterAmount,
			"otherPaymentName": "Barter Credits",
		})
	}

	body := map[string]interface{}{
		"checks": []map[string]interface{}{{
			"selections": selections,
			"payments":   payments,
			"taxAmount":  tx.TaxAmount,
		}},
	}
	out, err := callProvider(ctx, client, ProviderToast, http.MethodPost, a.base+"/orders/v2/orders", headers, body)
	if err != nil {
		return "", err
	}
	var resp struct {
		GUID string `json:"guid"`
	}
	if err := json.Unmarshal(out, &resp); err != nil || resp.GUID == "" {
		return "", fmt.Errorf("toast order response missing guid")
	}
	return resp.GUID, nil
}
