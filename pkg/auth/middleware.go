package auth

import (
	"context"
	"net/http"
	"strings"
)

// ChainedAuthenticator tries multiple authenticators in order.
type ChainedAuthenticator struct {
	authenticators []Authenticator
	allowAnonymous bool
}

// NewChainedAuthenticator creates a new chained authenticator. When
// allowAnonymous is set, callers no authenticator accepts are let through as
// the anonymous user.
func NewChainedAuthenticator(allowAnonymous bool, authenticators ...Authenticator) *ChainedAuthenticator {
	return &ChainedAuthenticator{authenticators: authenticators, allowAnonymous: allowAnonymous}
}

// Authenticate tries each authenticator in order.
func (c *ChainedAuthenticator) Authenticate(ctx context.Context) (*UserContext, error) {
	var lastErr error
	for _, a := range c.authenticators {
		uc, err := a.Authenticate(ctx)
		if err == nil && uc != nil {
			return uc, nil
		}
		if err != nil {
			lastErr = err
		}
	}

	if c.allowAnonymous {
		return &UserContext{UserID: "anonymous", AuthType: "anonymous"}, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrInvalidCredentials
}

// TokenFromRequest extracts the credential from the X-API-Key header or an
// "Authorization: Bearer" header.
func TokenFromRequest(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

// Verify interface compliance.
var _ Authenticator = (*ChainedAuthenticator)(nil)
