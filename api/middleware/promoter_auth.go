package middleware

import (
	"context"
	"net/http"

	"github.com/serataapp/serata-backend/api/responses"
	"github.com/serataapp/serata-backend/pkg/db/models"
	pkgerrors "github.com/serataapp/serata-backend/pkg/errors"
	"github.com/serataapp/serata-backend/pkg/logger"
)

// PromoterTokenResolver maps an opaque bearer token to its active
// promoter profile. *promoters.Service satisfies it.
type PromoterTokenResolver interface {
	ResolveToken(ctx context.Context, token string) (*models.PromoterProfile, error)
}

// PromoterAuth authenticates the mobile promoter app. Promoter profiles
// often have no login account, so this path never touches JWTs: the
// opaque session token on the profile row is the whole credential.
func PromoterAuth(resolver PromoterTokenResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing credentials"))
				return
			}

			profile, err := resolver.ResolveToken(r.Context(), token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve promoter token"))
				return
			}
			if profile == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "invalid or revoked token"))
				return
			}

			ctx := WithPromoterID(r.Context(), profile.ID.String())
			ctx = WithTenantID(ctx, profile.TenantID.String())
			ctx = WithRole(ctx, "promoter")
			if profile.AccountID != nil {
				ctx = WithAccountID(ctx, profile.AccountID.String())
			}

			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"promoter_profile_id": profile.ID.String(),
					"tenant_id":           profile.TenantID.String(),
					"actor_role":          "promoter",
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
