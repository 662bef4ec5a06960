package middleware

import (
	"net/http"
	"strings"

	"github.com/superbazaar/storefront-api/api/responses"
	pkgauth "github.com/superbazaar/storefront-api/pkg/auth"
	"github.com/superbazaar/storefront-api/pkg/config"
	pkgerrors "github.com/superbazaar/storefront-api/pkg/errors"
	"github.com/superbazaar/storefront-api/pkg/logger"
)

const sessionKeyHeader = "X-Session-Key"

// Identify resolves who the request acts as. A bearer token wins; otherwise
// the anonymous session header identifies a guest shopper. Requests carrying
// neither pass through with an empty identity so public endpoints still work.
func Identify(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw != "" {
				token := raw
				if strings.HasPrefix(strings.ToLower(token), "bearer ") {
					token = strings.TrimSpace(token[7:])
				}
				if token == "" {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
					return
				}

				claims, err := pkgauth.ParseAccessToken(cfg, token)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
					return
				}

				userID := claims.UserID
				identity := Identity{UserID: &userID, Role: claims.Role}
				ctx := WithIdentity(r.Context(), identity)
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{
						"user_id":    userID.String(),
						"actor_role": claims.Role.String(),
					})
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if sessionKey := strings.TrimSpace(r.Header.Get(sessionKeyHeader)); sessionKey != "" {
				ctx := WithIdentity(r.Context(), Identity{SessionKey: sessionKey})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireShopper lets through signed-in users and guests with a session key.
func RequireShopper(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFromContext(r.Context())
			if !identity.IsUser() && identity.SessionKey == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in or supply a session key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser lets through signed-in users only.
func RequireUser(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IdentityFromContext(r.Context()).IsUser() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
