package api

import (
	"net/http"

	"github.com/txn2/source-wizard/pkg/auth"
)

// RequireAuth creates middleware that authenticates the caller and stores
// the user in the request context. A nil authenticator lets every request
// through as the anonymous user.
func RequireAuth(a auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if token := auth.TokenFromRequest(r); token != "" {
				ctx = auth.WithToken(ctx, token)
			}

			if a == nil {
				ctx = auth.WithUserContext(ctx, &auth.UserContext{UserID: "anonymous", AuthType: "anonymous"})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			user, err := a.Authenticate(ctx)
			if err != nil || user == nil {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithUserContext(ctx, user)))
		})
	}
}

// RequireFeature hides the wrapped routes behind the sources feature flag.
// Disabled routes respond as if they did not exist.
func RequireFeature(f Features) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if f == nil || !f.SourcesEnabled() {
				writeError(w, http.StatusNotFound, "not found")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireAdmin rejects callers without the admin role.
func requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if uc := auth.GetUserContext(r.Context()); uc == nil || !uc.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next(w, r)
	}
}
