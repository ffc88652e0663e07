// Package identity resolves and mints the bearer credentials that gate the
// voice-note pipeline.
//
// The pipeline itself never touches credentials; it receives an already
// resolved [User]. This package owns the users table, bcrypt password
// hashing, and HS256 JWT access tokens, plus the short-lived realtime
// client tokens the mobile app exchanges for a direct speech session.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Sentinel errors reported by stores and the service.
var (
	ErrNotFound           = errors.New("identity: user not found")
	ErrDuplicateEmail     = errors.New("identity: email already registered")
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	ErrInvalidToken       = errors.New("identity: invalid token")
)

// User is a registered account. The voice-note pipeline holds it only as a
// lookup key and never mutates it.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Key returns the stable per-user key used by the cooldown store.
func (u User) Key() string { return u.Email }

// Service combines the user store with password hashing and token minting.
type Service struct {
	store  Store
	tokens *TokenService
}

// NewService constructs a Service from its collaborators.
func NewService(store Store, tokens *TokenService) *Service {
	return &Service{store: store, tokens: tokens}
}

// Register creates a new account and returns a freshly minted access token.
// Returns [ErrDuplicateEmail] when the address is taken.
func (s *Service) Register(ctx context.Context, email, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("identity: hash password: %w", err)
	}

	user, err := s.store.Create(ctx, email, string(hash))
	if err != nil {
		return "", err
	}
	return s.tokens.Mint(user)
}

// Login verifies the password for email and returns an access token.
// Unknown addresses and wrong passwords both report
// [ErrInvalidCredentials] so the two cases are indistinguishable.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.store.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}
	return s.tokens.Mint(user)
}

// Resolve maps a bearer token to the user it was minted for. Returns
// [ErrInvalidToken] for anything unverifiable or expired, and
// [ErrNotFound] when the account no longer exists.
func (s *Service) Resolve(ctx context.Context, token string) (User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return User{}, err
	}
	return s.store.GetByID(ctx, claims.UserID)
}

// RealtimeToken mints a short-lived realtime client token for the user
// identified by the bearer token.
func (s *Service) RealtimeToken(ctx context.Context, token string) (string, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return "", err
	}
	return s.tokens.MintRealtime(claims.Email)
}
