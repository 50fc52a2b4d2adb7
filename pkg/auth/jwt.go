package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures HS256 bearer tokens.
type JWTConfig struct {
	Issuer     string
	SigningKey []byte
	TTL        time.Duration
}

// Claims are the claims carried by wizard bearer tokens.
type Claims struct {
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthenticator issues and validates HS256 bearer tokens.
type JWTAuthenticator struct {
	cfg JWTConfig
	now func() time.Time
}

// NewJWTAuthenticator creates a new JWT authenticator.
func NewJWTAuthenticator(cfg JWTConfig) (*JWTAuthenticator, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("jwt issuer is required")
	}
	if len(cfg.SigningKey) == 0 {
		return nil, errors.New("jwt signing key is required")
	}
	if cfg.TTL == 0 {
		cfg.TTL = 12 * time.Hour
	}
	return &JWTAuthenticator{cfg: cfg, now: time.Now}, nil
}

// Issue returns a signed token for the user.
func (a *JWTAuthenticator) Issue(userID, email string, roles []string) (string, error) {
	now := a.now()
	claims := Claims{
		Email: email,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.cfg.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.cfg.TTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.cfg.SigningKey)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Authenticate validates the bearer token in ctx.
func (a *JWTAuthenticator) Authenticate(ctx context.Context) (*UserContext, error) {
	token := GetToken(ctx)
	if token == "" {
		return nil, errors.New("no token found in context")
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.cfg.SigningKey, nil
	},
		jwt.WithIssuer(a.cfg.Issuer),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidCredentials
	}
	if claims.Subject == "" {
		return nil, errors.New("missing sub claim")
	}

	return &UserContext{
		UserID:   claims.Subject,
		Email:    claims.Email,
		Roles:    claims.Roles,
		AuthType: "jwt",
	}, nil
}

// Verify interface compliance.
var _ Authenticator = (*JWTAuthenticator)(nil)
