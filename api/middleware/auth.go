package middleware

import (
	"net/http"
	"strings"

	"github.com/serataapp/serata-backend/api/responses"
	pkgauth "github.com/serataapp/serata-backend/pkg/auth"
	"github.com/serataapp/serata-backend/pkg/auth/session"
	"github.com/serataapp/serata-backend/pkg/config"
	pkgerrors "github.com/serataapp/serata-backend/pkg/errors"
	"github.com/serataapp/serata-backend/pkg/logger"
)

// Auth validates a JWT bearer token, checks the refresh session is still
// alive, and seeds the request context with the claims.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing credentials"))
				return
			}

			claims, err := pkgauth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthenticated, err, "invalid token"))
				return
			}
			if claims.ID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing session id"))
				return
			}

			if verifier != nil {
				ok, err := verifier.HasSession(r.Context(), claims.ID)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
					return
				}
				if !ok {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "session expired"))
					return
				}
			}

			ctx := WithAccountID(r.Context(), claims.AccountID.String())
			ctx = WithRole(ctx, string(claims.Role))
			if claims.TenantID != nil {
				ctx = WithTenantID(ctx, claims.TenantID.String())
			}
			if claims.PromoterProfileID != nil {
				ctx = WithPromoterID(ctx, claims.PromoterProfileID.String())
			}

			if logg != nil {
				fields := map[string]any{
					"account_id": claims.AccountID.String(),
					"actor_role": string(claims.Role),
				}
				if claims.TenantID != nil {
					fields["tenant_id"] = claims.TenantID.String()
				}
				ctx = logg.WithFields(ctx, fields)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}
