package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/serataapp/serata-backend/internal/identity"
)

// IdentityBackfiller resolves a partial credential pair into the
// canonical actor pair. *identity.Resolver satisfies it.
type IdentityBackfiller interface {
	Resolve(ctx context.Context, creds identity.RequestCredentials) identity.ResolvedIdentity
}

// ResolveIdentity back-fills the missing half of the actor pair on
// every request. Access tokens carry a snapshot of the claims at mint
// time, so a promoter profile linked to the account after login would
// otherwise stay invisible until the token is refreshed.
func ResolveIdentity(resolver IdentityBackfiller) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var creds identity.RequestCredentials
			if raw := AccountIDFromContext(ctx); raw != "" {
				if id, err := uuid.Parse(raw); err == nil {
					creds.AccountID = &id
				}
			}
			if raw := PromoterIDFromContext(ctx); raw != "" {
				if id, err := uuid.Parse(raw); err == nil {
					creds.PromoterProfileID = &id
				}
			}
			if creds.AccountID == nil && creds.PromoterProfileID == nil {
				next.ServeHTTP(w, r)
				return
			}

			resolved := resolver.Resolve(ctx, creds)
			if resolved.AccountID != nil && creds.AccountID == nil {
				ctx = WithAccountID(ctx, resolved.AccountID.String())
			}
			if resolved.PromoterProfileID != nil && creds.PromoterProfileID == nil {
				ctx = WithPromoterID(ctx, resolved.PromoterProfileID.String())
			}
			if resolved.PromoterProfileID == nil && creds.PromoterProfileID != nil {
				// The resolver dropped a stale profile reference.
				ctx = WithPromoterID(ctx, "")
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
