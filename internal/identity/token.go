package identity

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// defaultAccessTTL is the access-token lifetime when the config does
	// not override it.
	defaultAccessTTL = 12 * time.Hour

	// realtimeTTL is the fixed lifetime of realtime client tokens.
	realtimeTTL = 10 * time.Minute

	// realtimeScope marks a token as usable only for realtime sessions.
	realtimeScope = "realtime:client"
)

// Claims are the verified contents of an access token.
type Claims struct {
	UserID int64
	Email  string
}

// accessClaims is the JWT payload for access tokens.
type accessClaims struct {
	UID int64 `json:"uid"`
	jwt.RegisteredClaims
}

// realtimeClaims is the JWT payload for realtime client tokens.
type realtimeClaims struct {
	Model string `json:"model"`
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// TokenOption is a functional option for configuring a [TokenService].
type TokenOption func(*TokenService)

// WithAccessTTL overrides the default 12 h access-token lifetime.
func WithAccessTTL(d time.Duration) TokenOption {
	return func(s *TokenService) {
		if d > 0 {
			s.accessTTL = d
		}
	}
}

// WithRealtimeModel sets the model name embedded in realtime tokens.
func WithRealtimeModel(model string) TokenOption {
	return func(s *TokenService) {
		s.realtimeModel = model
	}
}

// TokenService signs and verifies HS256 JWTs. It is stateless and safe for
// concurrent use.
type TokenService struct {
	signingKey    []byte
	accessTTL     time.Duration
	realtimeModel string
}

// NewTokenService constructs a TokenService. secret must be non-empty.
func NewTokenService(secret string, opts ...TokenOption) (*TokenService, error) {
	if secret == "" {
		return nil, fmt.Errorf("identity: jwt secret must not be empty")
	}
	s := &TokenService{
		signingKey: []byte(secret),
		accessTTL:  defaultAccessTTL,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Mint issues an access token for user.
func (s *TokenService) Mint(user User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		UID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	})

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("identity: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates an access token.
func (s *TokenService) Verify(tokenString string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &accessClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*accessClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	return Claims{UserID: claims.UID, Email: claims.Subject}, nil
}

// MintRealtime issues a base64-wrapped, 10-minute realtime client token for
// email. The wrapping keeps the value opaque to clients that would
// otherwise try to decode it as a session JWT.
func (s *TokenService) MintRealtime(email string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, realtimeClaims{
		Model: s.realtimeModel,
		Scope: realtimeScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(realtimeTTL)),
		},
	})

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("identity: sign realtime token: %w", err)
	}
	return base64.StdEncoding.EncodeToString([]byte(signed)), nil
}
