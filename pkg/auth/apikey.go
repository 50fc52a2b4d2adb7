package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when no authenticator accepts the token.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator validates the credential carried in a context.
type Authenticator interface {
	Authenticate(ctx context.Context) (*UserContext, error)
}

// APIKey is a configured API key. Hash holds a bcrypt hash of the key; Key
// holds the plain value and is only used when Hash is empty.
type APIKey struct {
	Name  string   `yaml:"name"`
	Key   string   `yaml:"key,omitempty"`
	Hash  string   `yaml:"hash,omitempty"`
	Roles []string `yaml:"roles,omitempty"`
}

// APIKeyAuthenticator authenticates using API keys.
type APIKeyAuthenticator struct {
	keys []APIKey
}

// NewAPIKeyAuthenticator creates a new API key authenticator.
func NewAPIKeyAuthenticator(keys []APIKey) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{keys: keys}
}

// HashKey returns the bcrypt hash to store for key.
func HashKey(key string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing api key: %w", err)
	}
	return string(h), nil
}

// Authenticate validates the API key in ctx.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context) (*UserContext, error) {
	token := GetToken(ctx)
	if token == "" {
		return nil, errors.New("no API key found in context")
	}

	for _, k := range a.keys {
		if !matches(k, token) {
			continue
		}
		return &UserContext{
			UserID:   "apikey:" + k.Name,
			Email:    k.Name + "@apikey.local",
			Roles:    k.Roles,
			AuthType: "apikey",
		}, nil
	}
	return nil, ErrInvalidCredentials
}

func matches(k APIKey, token string) bool {
	if k.Hash != "" {
		return bcrypt.CompareHashAndPassword([]byte(k.Hash), []byte(token)) == nil
	}
	return k.Key != "" && subtle.ConstantTimeCompare([]byte(k.Key), []byte(token)) == 1
}

// Verify interface compliance.
var _ Authenticator = (*APIKeyAuthenticator)(nil)
