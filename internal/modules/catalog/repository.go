package catalog

import "context"

// Repository defines read access to the merchant product catalog.
type Repository interface {
	// GetByBarcode looks up a product by barcode or UPC, scoped to a
	// merchant. Returns sql.ErrNoRows when no product matches.
	GetByBarcode(ctx context.Context, merchantID, barcode string) (*Product, error)
}
