package pos

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShopifyNormalize(t *testing.T) {
	t.Parallel()

	a := &shopifyAdapter{}
	body := []byte(`{
		"id": 450789469,
		"total_price": "75.50",
		"total_tax": "5.50",
		"total_discounts": "2.00",
		"currency": "USD",
		"created_at": "2026-08-01T10:00:00Z",
		"line_items": [
			{"title": "T-Shirt", "sku": "TS-01", "price": "25.00", "quantity": 2},
			{"title": "Mug", "sku": "MG-01", "price": "20.00", "quantity": 1}
		]
	}`)
	h := http.Header{}
	h.Set("x-shopify-shop-domain", "acme.myshopify.com")

	ev, err := a.Normalize(body, h)
	require.NoError(t, err)
	require.Equal(t, "450789469", ev.ExternalID)
	require.Equal(t, "acme.myshopify.com", ev.MerchantKey)
	require.Equal(t, 75.50, ev.TotalAmount)
	require.Equal(t, 5.50, ev.TaxAmount)
	require.Equal(t, 2.00, ev.DiscountAmount)
	require.Equal(t, time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC), ev.TransactionDate.UTC())
	require.Len(t, ev.Items, 2)
	require.Equal(t, LineItem{Name: "T-Shirt", SKU: "TS-01", UnitPrice: 25.00, Quantity: 2}, ev.Items[0])

	// The shop domain header is the routing key; without it the event
	// cannot be attributed.
	_, err = a.Normalize(body, http.Header{})
	require.Error(t, err)

	_, err = a.Normalize([]byte(`{"total_price":"10.00"}`), h)
	require.Error(t, err)
}

func TestCloverNormalize(t *testing.T) {
	t.Parallel()

	a := &cloverAdapter{}
	body := []byte(`{
		"merchantId": "MERCH1",
		"paymentId": "PAY1",
		"amount": 4250,
		"taxAmount": 350,
		"tipAmount": 500,
		"currency": "USD",
		"createdTime": 1754042400000,
		"lineItems": [{"name": "Espresso", "price": 425, "unitQty": 2}]
	}`)

	ev, err := a.Normalize(body, http.Header{})
	require.NoError(t, err)
	require.Equal(t, "PAY1", ev.ExternalID)
	require.Equal(t, "MERCH1", ev.MerchantKey)
	require.Equal(t, 42.50, ev.TotalAmount)
	require.Equal(t, 3.50, ev.TaxAmount)
	require.Equal(t, 5.00, ev.TipAmount)
	require.Equal(t, time.UnixMilli(1754042400000), ev.TransactionDate)
	require.Equal(t, []LineItem{{Name: "Espresso", UnitPrice: 4.25, Quantity: 2}}, ev.Items)

	// Falls back to the top-level id when paymentId is absent.
	ev, err = a.Normalize([]byte(`{"merchantId":"MERCH1","id":"EVT1","amount":100}`), http.Header{})
	require.NoError(t, err)
	require.Equal(t, "EVT1", ev.ExternalID)

	_, err = a.Normalize([]byte(`{"paymentId":"PAY1","amount":100}`), http.Header{})
	require.Error(t, err)
}

func TestToastNormalize(t *testing.T) {
	t.Parallel()

	a := &toastAdapter{}
	body := []byte(`{
		"restaurantGuid": "rest-1",
		"guid": "order-1",
		"paidDate": "2026-08-01T19:30:00Z",
		"checks": [
			{"totalAmount": 40.00, "taxAmount": 3.00, "tipAmount": 6.00,
			 "selections": [{"displayName": "Burger", "price": 15.00, "quantity": 2}]},
			{"totalAmount": 12.00, "taxAmount": 1.00, "tipAmount": 0,
			 "selections": [{"displayName": "Soda", "price": 4.00, "quantity": 0}]}
		]
	}`)

	ev, err := a.Normalize(body, http.Header{})
	require.NoError(t, err)
	require.Equal(t, "order-1", ev.ExternalID)
	require.Equal(t, "rest-1", ev.MerchantKey)
	require.Equal(t, "USD", ev.Currency)
	// Totals sum across all checks on the order.
	require.Equal(t, 52.00, ev.TotalAmount)
	require.Equal(t, 4.00, ev.TaxAmount)
	require.Equal(t, 6.00, ev.TipAmount)
	require.Len(t, ev.Items, 2)
	require.Equal(t, 1, ev.Items[1].Quantity) // zero quantity defaults to 1

	_, err = a.Normalize([]byte(`{"guid":"order-1"}`), http.Header{})
	require.Error(t, err)
}

func TestLightspeedNormalize(t *testing.T) {
	t.Parallel()

	a := &lightspeedAdapter{}
	sale := `{
		"saleID": "sale-7",
		"accountID": "acct-3",
		"total": 30.00,
		"tax": 2.40,
		"currency": "USD",
		"timeStamp": "2026-08-01T12:00:00Z",
		"saleLines": [{"description": "Notebook", "unitPrice": 15.00, "unitQuantity": 2, "upc": "012345678905"}]
	}`

	plain, err := a.Normalize([]byte(sale), http.Header{})
	require.NoError(t, err)

	// The form-encoded delivery wraps the same JSON in a payload field.
	form := url.Values{"payload": {sale}}.Encode()
	wrapped, err := a.Normalize([]byte(form), http.Header{})
	require.NoError(t, err)
	require.Equal(t, plain, wrapped)

	require.Equal(t, "sale-7", plain.ExternalID)
	require.Equal(t, "acct-3", plain.MerchantKey)
	require.Equal(t, 30.00, plain.TotalAmount)
	require.Equal(t, 2.40, plain.TaxAmount)
	require.Equal(t, []LineItem{{Name: "Notebook", Barcode: "012345678905", UnitPrice: 15.00, Quantity: 2}}, plain.Items)

	_, err = a.Normalize([]byte(`{"accountID":"acct-3"}`), http.Header{})
	require.Error(t, err)
}

func TestAdyenNormalize(t *testing.T) {
	t.Parallel()

	a := &adyenAdapter{}
	body := []byte(`{"notificationItems":[{"NotificationRequestItem":{
		"pspReference": "psp-42",
		"merchantAccountCode": "AcmeCorp",
		"merchantReference": "order-9",
		"eventCode": "AUTHORISATION",
		"success": "true",
		"eventDate": "2026-08-01T08:00:00Z",
		"amount": {"value": 12500, "currency": "EUR"}
	}}]}`)

	ev, err := a.Normalize(body, http.Header{})
	require.NoError(t, err)
	require.Equal(t, "psp-42", ev.ExternalID)
	require.Equal(t, "AcmeCorp", ev.MerchantKey)
	require.Equal(t, "EUR", ev.Currency)
	require.Equal(t, 125.00, ev.TotalAmount)
	require.Equal(t, time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC), ev.TransactionDate.UTC())

	_, err = a.Normalize([]byte(`{"notificationItems":[]}`), http.Header{})
	require.Error(t, err)

	_, err = a.Normalize([]byte(`{"notificationItems":[{"NotificationRequestItem":{"merchantAccountCode":"AcmeCorp"}}]}`), http.Header{})
	require.Error(t, err)
}
