package catalog

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

type postgresRepo struct{ db *sql.DB }

// NewPostgresRepository creates a new PostgreSQL catalog repository.
func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

func (r *postgresRepo) GetByBarcode(ctx context.Context, merchantID, barcode string) (*Product, error) {
	p := &Product{}
	var sku, restriction sql.NullString
	var catID sql.NullString
	var catName sql.NullString
	var catRestricted sql.NullBool

	err := r.db.QueryRowContext(ctx, `
		SELECT p.id, p.merchant_id, p.name, p.barcode, p.sku, p.price,
		       p.is_barter_eligible, p.barter_enabled, p.restriction_reason,
		       c.id, c.name, c.is_restricted,
		       p.created_at, p.updated_at
		FROM products p
		LEFT JOIN product_categories c ON c.id = p.category_id
		WHERE p.merchant_id = $1 AND (p.barcode = $2 OR p.sku = $2)
		LIMIT 1`, merchantID, barcode).Scan(
		&p.ID, &p.MerchantID, &p.Name, &p.Barcode, &sku, &p.Price,
		&p.IsBarterEligible, &p.BarterEnabled, &restriction,
		&catID, &catName, &catRestricted,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if sku.Valid {
		p.SKU = sku.String
	}
	if restriction.Valid {
		p.RestrictionReason = restriction.String
	}
	if catID.Valid {
		id, _ := uuid.Parse(catID.String)
		p.Category = &Category{
			ID:           id,
			Name:         catName.String,
			IsRestricted: catRestricted.Bool,
		}
	}
	return p, nil
}
