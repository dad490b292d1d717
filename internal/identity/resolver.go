package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/serataapp/serata-backend/pkg/logger"
)

// RequestCredentials is the union of credential shapes the HTTP layer can
// hand us: a session-bound account, a session-bound promoter profile, or
// a bearer credential naming a profile directly.
type RequestCredentials struct {
	AccountID         *uuid.UUID
	PromoterProfileID *uuid.UUID
}

// ResolvedIdentity is the canonical actor pair. Both fields nil means
// unauthenticated; authorization decisions belong to the assignment
// registry, not here.
type ResolvedIdentity struct {
	AccountID         *uuid.UUID
	PromoterProfileID *uuid.UUID
}

// IsAnonymous reports whether nothing at all resolved.
func (i ResolvedIdentity) IsAnonymous() bool {
	return i.AccountID == nil && i.PromoterProfileID == nil
}

// Resolver back-fills the missing half of an identity pair. The system
// evolved from account-only to profile-only credential schemes and
// historical rows populate only one side, so both lookups stay supported.
type Resolver struct {
	repo Repository
	logg *logger.Logger
}

// NewResolver wires the identity resolver.
func NewResolver(repo Repository, logg *logger.Logger) *Resolver {
	return &Resolver{repo: repo, logg: logg}
}

// Resolve turns inbound credentials into the canonical pair. It never
// fails: lookup errors degrade to whatever subset was already known, and
// absence is expressed as nil fields.
func (r *Resolver) Resolve(ctx context.Context, creds RequestCredentials) ResolvedIdentity {
	resolved := ResolvedIdentity{
		AccountID:         creds.AccountID,
		PromoterProfileID: creds.PromoterProfileID,
	}

	if resolved.PromoterProfileID != nil {
		if resolved.AccountID == nil {
			profile, err := r.repo.FindProfileByID(ctx, *resolved.PromoterProfileID)
			if err != nil {
				r.warn(ctx, "profile lookup failed during identity resolution", err)
				return resolved
			}
			if profile == nil {
				// Stale bearer credential; drop the dangling reference.
				resolved.PromoterProfileID = nil
				return resolved
			}
			resolved.AccountID = profile.AccountID
		}
		return resolved
	}

	if resolved.AccountID != nil {
		profile, err := r.repo.FindProfileByAccountID(ctx, *resolved.AccountID)
		if err != nil {
			r.warn(ctx, "account-linked profile lookup failed during identity resolution", err)
			return resolved
		}
		if profile != nil {
			resolved.PromoterProfileID = &profile.ID
		}
	}

	return resolved
}

func (r *Resolver) warn(ctx context.Context, msg string, err error) {
	if r.logg == nil {
		return
	}
	r.logg.Error(ctx, msg, err)
}
