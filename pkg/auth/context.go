// Package auth authenticates API callers by API key or bearer token.
package auth

import (
	"context"
	"slices"
)

type contextKey int

const (
	userContextKey contextKey = iota
	tokenContextKey
)

// RoleAdmin may modify any source regardless of ownership.
const RoleAdmin = "admin"

// UserContext holds authenticated user information.
type UserContext struct {
	UserID   string   `json:"user_id"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	AuthType string   `json:"auth_type"` // "jwt", "apikey", "anonymous"
}

// WithUserContext adds user context to the context.
func WithUserContext(ctx context.Context, uc *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, uc)
}

// GetUserContext retrieves user context from the context.
func GetUserContext(ctx context.Context) *UserContext {
	if uc, ok := ctx.Value(userContextKey).(*UserContext); ok {
		return uc
	}
	return nil
}

// UserID returns the authenticated user id in ctx, or "".
func UserID(ctx context.Context) string {
	if uc := GetUserContext(ctx); uc != nil {
		return uc.UserID
	}
	return ""
}

// WithToken adds a raw credential to the context.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

// GetToken retrieves the raw credential from the context.
func GetToken(ctx context.Context) string {
	if t, ok := ctx.Value(tokenContextKey).(string); ok {
		return t
	}
	return ""
}

// HasRole checks if the user has a specific role.
func (uc *UserContext) HasRole(role string) bool {
	return uc != nil && slices.Contains(uc.Roles, role)
}

// IsAdmin reports whether the user holds the admin role.
func (uc *UserContext) IsAdmin() bool {
	return uc.HasRole(RoleAdmin)
}
