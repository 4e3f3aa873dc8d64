package merchant

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

type postgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL merchant repository.
func NewPostgresRepository(db *sql.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, m *Merchant) error {
	query := `
		INSERT INTO merchants (id, email, password_hash, business_name)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query, m.ID, m.Email, m.PasswordHash, m.BusinessName)
	return err
}

func (r *postgresRepository) GetByEmail(ctx context.Context, email string) (*Merchant, error) {
	m := &Merchant{}
	query := `
		SELECT id, email, password_hash, business_name, created_at, updated_at
		FROM merchants
		WHERE email = $1
	`
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&m.ID, &m.Email, &m.PasswordHash, &m.BusinessName, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id string) (*Merchant, error) {
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}

	m := &Merchant{}
	query := `
		SELECT id, email, password_hash, business_name, created_at, updated_at
		FROM merchants
		WHERE id = $1
	`
	err = r.db.QueryRowContext(ctx, query, parsedID).Scan(
		&m.ID, &m.Email, &m.PasswordHash, &m.BusinessName, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}
