package pos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

type postgresRepo struct{ db *sql.DB }

// NewPostgresRepository creates a new PostgreSQL transaction repository.
// The pos_transactions table carries a unique constraint on
// (provider, external_transaction_id).
func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

func (r *postgresRepo) CreateIfAbsent(ctx context.Context, tx *PosTransaction) (bool, error) {
	items, err := json.Marshal(tx.Items)
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO pos_transactions
		  (id, provider, external_transaction_id, merchant_id, integration_id,
		   total_amount, currency, tax_amount, tip_amount, discount_amount,
		   barter_amount, barter_percentage, cash_amount, card_amount,
		   items, location_id, transaction_date, status, raw_payload, sync_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		ON CONFLICT (provider, external_transaction_id) DO NOTHING`,
		tx.ID, tx.Provider, tx.ExternalTransactionID, tx.MerchantID, tx.IntegrationID,
		tx.TotalAmount, tx.Currency, tx.TaxAmount, tx.TipAmount, tx.DiscountAmount,
		tx.BarterAmount, tx.BarterPercentage, tx.CashAmount, tx.CardAmount,
		items, nilIfEmpty(tx.LocationID), tx.TransactionDate, tx.Status,
		tx.RawPayload, tx.SyncStatus)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*PosTransaction, error) {
	return r.scan(r.db.QueryRowContext(ctx, selectSQL+" WHERE id=$1", id))
}

func (r *postgresRepo) GetByExternalID(ctx context.Context, provider Provider, externalID string) (*PosTransaction, error) {
	return r.scan(r.db.QueryRowContext(ctx,
		selectSQL+" WHERE provider=$1 AND external_transaction_id=$2", provider, externalID))
}

func (r *postgresRepo) ListByMerchant(ctx context.Context, merchantID string) ([]*PosTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		selectSQL+" WHERE merchant_id=$1 ORDER BY transaction_date DESC", merchantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txs []*PosTransaction
	for rows.Next() {
		tx, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	if txs == nil {
		txs = []*PosTransaction{}
	}
	return txs, rows.Err()
}

func (r *postgresRepo) MarkSynced(ctx context.Context, id, externalID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE pos_transactions
		SET external_transaction_id=$1, sync_status=$2, updated_at=$3
		WHERE id=$4`,
		externalID, SyncSynced, time.Now(), id)
	return err
}

// ── scanner ───────────────────────────────────────────────────────────────────

const selectSQL = `
	SELECT id, provider, external_transaction_id, merchant_id, integration_id,
	       total_amount, currency, tax_amount, tip_amount, discount_amount,
	       barter_amount, barter_percentage, cash_amount, card_amount,
	       items, location_id, transaction_date, status, raw_payload,
	       sync_status, created_at, updated_at
	FROM pos_transactions`

type rowScanner interface{ Scan(dest ...interface{}) error }

func (r *postgresRepo) scan(row rowScanner) (*PosTransaction, error) {
	tx := &PosTransaction{}
	var items []byte
	var locationID sql.NullString

	err := row.Scan(&tx.ID, &tx.Provider, &tx.ExternalTransactionID,
		&tx.MerchantID, &tx.IntegrationID,
		&tx.TotalAmount, &tx.Currency, &tx.TaxAmount, &tx.TipAmount, &tx.DiscountAmount,
		&tx.BarterAmount, &tx.BarterPercentage, &tx.CashAmount, &tx.CardAmount,
		&items, &locationID, &tx.TransactionDate, &tx.Status, &tx.RawPayload,
		&tx.SyncStatus, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if locationID.Valid {
		tx.LocationID = locationID.String
	}
	if len(items) > 0 {
		_ = json.Unmarshal(items, &tx.Items)
	}
	return tx, nil
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
