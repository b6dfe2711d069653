package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/pkordes/rideshare-ledger/internal/auth"
)

// TokenVerifier validates the Authorization header value.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// NewAuthenticator returns a middleware that rejects requests without a valid
// bearer token with 401 and otherwise stores the caller's identity in the
// request context (see auth.FromContext).
func NewAuthenticator(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := v.Verify(r.Header.Get("Authorization"))
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="rideshare-ledger"`)
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]string{"code": "unauthorized", "message": err.Error()},
				})
				return
			}
			recordCaller(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}
