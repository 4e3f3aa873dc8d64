package pos

import (
	"time"

	"github.com/google/uuid"
)

// Provider identifies a supported POS provider. Values match the
// webhook `provider` query parameter.
type Provider string

const (
	ProviderSquare     Provider = "square"
	ProviderShopify    Provider = "shopify"
	ProviderClover     Provider = "clover"
	ProviderToast      Provider = "toast"
	ProviderLightspeed Provider = "lightspeed"
	ProviderAdyen      Provider = "adyen"
)

// TxStatus is the settlement state of a transaction.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxCompleted TxStatus = "completed"
	TxFailed    TxStatus = "failed"
)

// SyncStatus says whether the settled split has been mirrored back into
// the provider's own ledger.
type SyncStatus string

const (
	SyncUnsynced SyncStatus = "unsynced"
	SyncSynced   SyncStatus = "synced"
)

// LineItem is one purchased line in canonical form.
type LineItem struct {
	Name      string  `json:"name"`
	Barcode   string  `json:"barcode,omitempty"`
	SKU       string  `json:"sku,omitempty"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	Category  string  `json:"category,omitempty"`
}

// TotalPrice is the extended price of the line.
func (li LineItem) TotalPrice() float64 {
	return li.UnitPrice * float64(li.Quantity)
}

// PosTransaction is the canonical settled transaction, persisted exactly
// once per external event. (provider, external_transaction_id) is unique.
// Rows are immutable except for attaching a provider-assigned id after
// outbound sync.
type PosTransaction struct {
	ID                    uuid.UUID  `json:"id"`
	Provider              Provider   `json:"provider"`
	ExternalTransactionID string     `json:"external_transaction_id"`
	MerchantID            uuid.UUID  `json:"merchant_id"`
	IntegrationID         uuid.UUID  `json:"integration_id"`
	TotalAmount           float64    `json:"total_amount"`
	Currency              string     `json:"currency"`
	TaxAmount             float64    `json:"tax_amount"`
	TipAmount             float64    `json:"tip_amount"`
	DiscountAmount        float64    `json:"discount_amount"`
	BarterAmount          float64    `json:"barter_amount"`
	BarterPercentage      float64    `json:"barter_percentage"`
	CashAmount            float64    `json:"cash_amount"`
	CardAmount            float64    `json:"card_amount"`
	Items                 []LineItem `json:"items"`
	LocationID            string     `json:"location_id,omitempty"`
	TransactionDate       time.Time  `json:"transaction_date"`
	Status                TxStatus   `json:"status"`
	RawPayload            []byte     `json:"-"` // opaque, kept for audit
	SyncStatus            SyncStatus `json:"sync_status"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// NormalizedEvent is what a provider adapter extracts from a webhook
// payload before the split is computed.
type NormalizedEvent struct {
	ExternalID      string
	MerchantKey     string // provider-specific integration lookup key
	LocationID      string
	Currency        string
	TotalAmount     float64
	TaxAmount       float64
	TipAmount       float64
	DiscountAmount  float64
	TransactionDate time.Time
	Items           []LineItem
}

// Credentials is the decrypted material an adapter needs for an
// outbound provider call.
type Credentials struct {
	AccessToken     string
	ExternalStoreID string
}

// WebhookResult is returned by the gateway after processing an event.
type WebhookResult struct {
	TransactionID string `json:"transaction_id,omitempty"`
	Duplicate     bool   `json:"duplicate,omitempty"`
}

// SyncRequest asks the orchestrator to mirror a settled transaction
// into the provider's ledger.
type SyncRequest struct {
	TransactionID    string        `json:"transaction_id"`
	MerchantID       string        `json:"merchant_id"`
	POSIntegrationID string        `json:"pos_integration_id"`
	Items            []LineItem    `json:"items,omitempty"`
	Totals           *SyncTotals   `json:"totals,omitempty"`
	CustomerInfo     *CustomerInfo `json:"customer_info,omitempty"`
}

// SyncTotals carries the settled split for transactions that originated
// at checkout rather than from an inbound webhook.
type SyncTotals struct {
	Subtotal     float64 `json:"subtotal"`
	CashAmount   float64 `json:"cash_amount"`
	BarterAmount float64 `json:"barter_amount"`
	TaxAmount    float64 `json:"tax_amount"`
	Total        float64 `json:"total"`
}

// CustomerInfo is optional customer detail forwarded to the provider.
type CustomerInfo struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// SyncResult reports a completed outbound sync.
type SyncResult struct {
	Success          bool     `json:"success"`
	POSTransactionID string   `json:"pos_transaction_id"`
	Provider         Provider `json:"provider"`
	Details          string   `json:"details,omitempty"`
}
