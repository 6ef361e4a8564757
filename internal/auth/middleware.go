package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/redmonkez12/users-auth-api/internal/httputil"
	"github.com/redmonkez12/users-auth-api/internal/logging"
	"github.com/redmonkez12/users-auth-api/internal/user"
)

const notAuthorizedMessage = "Not authorized"

// Authenticator resolves the user behind a bearer token
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*user.User, error)
}

// Middleware handles authentication for protected routes
type Middleware struct {
	auth Authenticator
}

func NewMiddleware(auth Authenticator) *Middleware {
	return &Middleware{auth: auth}
}

// RequireAuth rejects requests without a live bearer token and stores the
// resolved user in the request context
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := logging.GetLoggerFromContext(r.Context())

		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			logger.Warn("missing or malformed authorization header")
			httputil.RespondError(w, notAuthorizedMessage, http.StatusUnauthorized)
			return
		}

		u, err := m.auth.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, ErrNotAuthorized) {
				logger.Warn("authentication failed", "error", err.Error())
				httputil.RespondError(w, notAuthorizedMessage, http.StatusUnauthorized)
				return
			}
			logger.Error("authentication failed: internal error", "error", err.Error())
			httputil.RespondError(w, "Server error", http.StatusInternalServerError)
			return
		}

		next.ServeHTTP(w, r.WithContext(user.NewContext(r.Context(), u)))
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || scheme != "Bearer" || token == "" {
		return "", false
	}
	return token, true
}
