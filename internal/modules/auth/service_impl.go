package auth

import (
	"context"
	"errors"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"

	"github.com/barterhq/barterhq-backend/internal/modules/merchant"
)

type service struct {
	merchantRepo merchant.Repository
	jwtKey       []byte
}

// NewService creates a new auth service.
func NewService(merchantRepo merchant.Repository, jwtKey []byte) Service {
	return &service{merchantRepo: merchantRepo, jwtKey: jwtKey}
}

func (s *service) Login(ctx context.Context, email, password string) (string, error) {
	m, err := s.merchantRepo.GetByEmail(ctx, email)
	if err != nil {
		return "", errors.New("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(password)); err != nil {
		return "", errors.New("invalid credentials")
	}

	expirationTime := time.Now().Add(24 * time.Hour)
	claims := &jwt.StandardClaims{
		Subject:   m.ID.String(),
		ExpiresAt: expirationTime.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}
