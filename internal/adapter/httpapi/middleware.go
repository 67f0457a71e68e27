package httpapi

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/refractlabs/refract-core/internal/domain"
)

type contextKey struct{ name string }

var callerKey = &contextKey{"caller"}

// Caller returns the principal the request authenticated as.
func Caller(ctx context.Context) (domain.Address, bool) {
	a, ok := ctx.Value(callerKey).(domain.Address)
	return a, ok
}

// TokenAuth guards a router with a static bearer token. Requests presenting
// the token proceed with the principal attached to the context. Comparison
// runs over hashes in constant time.
func TokenAuth(token string, principal domain.Address) mux.MiddlewareFunc {
	validHash := sha256.Sum256([]byte(token))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			presented := strings.TrimPrefix(header, "Bearer ")
			presentedHash := sha256.Sum256([]byte(presented))

			if presented == header || subtle.ConstantTimeCompare(validHash[:], presentedHash[:]) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="refract"`)
				writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
				return
			}

			ctx := context.WithValue(r.Context(), callerKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
