package merchant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type service struct {
	repo Repository
}

// NewService creates a new merchant service.
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Register(ctx context.Context, email, password, businessName string) (*Merchant, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("email and password are required")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	m := &Merchant{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hashedPassword),
		BusinessName: businessName,
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}

	return m, nil
}

func (s *service) Get(ctx context.Context, id string) (*Merchant, error) {
	return s.repo.GetByID(ctx, id)
}
