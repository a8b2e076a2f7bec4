package httphandler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/geotrack/geotrack/internal/domain/model"
)

const (
	msgBadAuthHeader = "missing or invalid authorization header"
	msgInvalidToken  = "invalid token"
)

// TokenFinder resolves a presented bearer token to the stored credential.
// A nil credential with a nil error means the token is unknown.
type TokenFinder interface {
	FindByToken(ctx context.Context, candidate string) (*model.Credential, error)
}

// RequireBearer rejects requests that do not carry the stored API token as
// "Authorization: Bearer <token>". The scheme is matched case-insensitively.
func RequireBearer(tokens TokenFinder, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				reject(w, r, logger, msgBadAuthHeader)
				return
			}

			cred, err := tokens.FindByToken(r.Context(), token)
			if err != nil {
				logger.Error("token lookup failed", "path", r.URL.Path, "error", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if cred == nil {
				reject(w, r, logger, msgInvalidToken)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request, logger *slog.Logger, message string) {
	logger.Warn("request rejected",
		"path", r.URL.Path,
		"remote", r.RemoteAddr,
		"error", fmt.Errorf("%w: %s", model.ErrAuth, message),
	)
	writeError(w, http.StatusUnauthorized, message)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
