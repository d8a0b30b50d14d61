package api

import (
	"context"
	"net/http"

	"github.com/go-chi/jwtauth"
)

type contextKey string

const sessionKeyCtx contextKey = "session_key"

// SessionHeader is the fallback header carrying the opaque session key
// when no verified token is present.
const SessionHeader = "X-Session-Key"

// sessionClaim is the JWT claim holding the session key.
const sessionClaim = "sid"

// SessionKey extracts the opaque session key attached by SessionIdentity.
// Empty when the request carried no identity.
func SessionKey(ctx context.Context) string {
	key, _ := ctx.Value(sessionKeyCtx).(string)
	return key
}

// SessionIdentity resolves the caller's session key, preferring a
// verified JWT claim (when a jwtauth verifier ran earlier in the chain)
// over the plain session header. Requests with neither are rejected; the
// upload core never creates or validates sessions itself.
func SessionIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := sessionFromToken(r)
		if key == "" {
			key = r.Header.Get(SessionHeader)
		}
		if key == "" {
			http.Error(w, "missing session identity", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKeyCtx, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFromToken(r *http.Request) string {
	token, claims, err := jwtauth.FromContext(r.Context())
	if err != nil || token == nil {
		return ""
	}
	sid, _ := claims[sessionClaim].(string)
	return sid
}
