package integration

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
)

type postgresRepo struct{ db *sql.DB }

// NewPostgresRepository creates a new PostgreSQL integration repository.
func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

func (r *postgresRepo) Upsert(ctx context.Context, in *POSIntegration) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pos_integrations
		  (id, merchant_id, provider, auth_method, access_token, refresh_token,
		   token_expires_at, external_store_id, status, barter_percentage,
		   webhook_url, scopes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (merchant_id, provider) DO UPDATE SET
		  auth_method=EXCLUDED.auth_method,
		  access_token=EXCLUDED.access_token,
		  refresh_token=EXCLUDED.refresh_token,
		  token_expires_at=EXCLUDED.token_expires_at,
		  external_store_id=EXCLUDED.external_store_id,
		  status=EXCLUDED.status,
		  scopes=EXCLUDED.scopes,
		  updated_at=now()`,
		in.ID, in.MerchantID, in.Provider, in.AuthMethod,
		nilIfEmpty(in.AccessToken), nilIfEmpty(in.RefreshToken),
		in.TokenExpiresAt, nilIfEmpty(in.ExternalStoreID), in.Status,
		in.BarterPercentage, nilIfEmpty(in.WebhookURL), pq.Array(in.Scopes))
	return err
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*POSIntegration, error) {
	return r.scan(r.db.QueryRowContext(ctx, selectSQL+" WHERE id=$1", id))
}

func (r *postgresRepo) GetByProviderStore(ctx context.Context, provider, externalStoreID string) (*POSIntegration, error) {
	return r.scan(r.db.QueryRowContext(ctx,
		selectSQL+" WHERE provider=$1 AND external_store_id=$2 AND status='active'",
		provider, externalStoreID))
}

func (r *postgresRepo) ListByMerchant(ctx context.Context, merchantID string) ([]*POSIntegration, error) {
	rows, err := r.db.QueryContext(ctx, selectSQL+" WHERE merchant_id=$1 ORDER BY created_at", merchantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*POSIntegration
	for rows.Next() {
		in, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	if out == nil {
		out = []*POSIntegration{}
	}
	return out, rows.Err()
}

func (r *postgresRepo) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt *time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE pos_integrations
		SET access_token=$1, refresh_token=$2, token_expires_at=$3, updated_at=$4
		WHERE id=$5`,
		accessToken, refreshToken, expiresAt, time.Now(), id)
	return err
}

func (r *postgresRepo) UpdateStatus(ctx context.Context, id string, status Status) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE pos_integrations SET status=$1, updated_at=$2 WHERE id=$3`,
		status, time.Now(), id)
	return err
}

func (r *postgresRepo) CreateState(ctx context.Context, st *OAuthState) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO oauth_states (state_token, merchant_id, provider, expires_at)
		VALUES ($1,$2,$3,$4)`,
		st.StateToken, st.MerchantID, st.Provider, st.ExpiresAt)
	return err
}

func (r *postgresRepo) ConsumeState(ctx context.Context, token string) (*OAuthState, error) {
	st := &OAuthState{}
	err := r.db.QueryRowContext(ctx, `
		DELETE FROM oauth_states WHERE state_token=$1
		RETURNING state_token, merchant_id, provider, expires_at`, token).Scan(
		&st.StateToken, &st.MerchantID, &st.Provider, &st.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// ── scanner ───────────────────────────────────────────────────────────────────

const selectSQL = `
	SELECT id, merchant_id, provider, auth_method, access_token, refresh_token,
	       token_expires_at, external_store_id, status, barter_percentage,
	       webhook_url, scopes, created_at, updated_at
	FROM pos_integrations`

type rowScanner interface{ Scan(dest ...interface{}) error }

func (r *postgresRepo) scan(row rowScanner) (*POSIntegration, error) {
	in := &POSIntegration{}
	var access, refresh, storeID, webhookURL sql.NullString
	var expiresAt sql.NullTime

	err := row.Scan(&in.ID, &in.MerchantID, &in.Provider, &in.AuthMethod,
		&access, &refresh, &expiresAt, &storeID, &in.Status,
		&in.BarterPercentage, &webhookURL, pq.Array(&in.Scopes),
		&in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if access.Valid {
		in.AccessToken = access.String
	}
	if refresh.Valid {
		in.RefreshToken = refresh.String
	}
	if storeID.Valid {
		in.ExternalStoreID = storeID.String
	}
	if webhookURL.Valid {
		in.WebhookURL = webhookURL.String
	}
	if expiresAt.Valid {
		in.TokenExpiresAt = &expiresAt.Time
	}
	return in, nil
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
