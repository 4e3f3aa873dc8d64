package pos

import "context"

// Repository defines data access for canonical POS transactions.
type Repository interface {
	// CreateIfAbsent inserts the transaction unless a row with the same
	// (provider, external_transaction_id) already exists, and reports
	// whether the insert happened. The check and the insert are one
	// atomic statement, so concurrent duplicate deliveries cannot race.
	CreateIfAbsent(ctx context.Context, tx *PosTransaction) (inserted bool, err error)
	GetByID(ctx context.Context, id string) (*PosTransaction, error)
	GetByExternalID(ctx context.Context, provider Provider, externalID string) (*PosTransaction, error)
	ListByMerchant(ctx context.Context, merchantID string) ([]*PosTransaction, error)
	// MarkSynced attaches the provider-assigned id after outbound sync.
	MarkSynced(ctx context.Context, id, externalID string) error
}
