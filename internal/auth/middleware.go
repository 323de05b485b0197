package auth

import (
	"net/http"
	"strings"

	"github.com/odyssey-erp/odyssey-starter/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-starter/internal/shared"
)

// Middleware guards routes with bearer tokens.
type Middleware struct {
	Tokens *TokenIssuer
}

// RequireBearer rejects requests without a valid bearer token and stores the
// caller's principal in the request context.
func (m Middleware) RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok || m.Tokens == nil {
			httpx.RespondError(w, shared.ErrUnauthorized)
			return
		}
		claims, err := m.Tokens.Parse(raw)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		userID, _ := claims.UserID()
		ctx := shared.ContextWithPrincipal(r.Context(), shared.Principal{UserID: userID, Username: claims.Username})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
