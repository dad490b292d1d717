package controllers

import (
	"context"

	"github.com/google/uuid"

	"github.com/serataapp/serata-backend/api/middleware"
	"github.com/serataapp/serata-backend/internal/identity"
)

// actorFromContext rebuilds the acting identity from whatever the auth
// middleware seeded. Either side may be absent: staff tokens carry only
// an account, promoter app tokens often carry only a profile.
func actorFromContext(ctx context.Context) identity.ResolvedIdentity {
	var actor identity.ResolvedIdentity
	if raw := middleware.AccountIDFromContext(ctx); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			actor.AccountID = &id
		}
	}
	if raw := middleware.PromoterIDFromContext(ctx); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			actor.PromoterProfileID = &id
		}
	}
	return actor
}

// staffOverride reports whether the caller acts with tenant-staff
// authority rather than through an event assignment.
func staffOverride(role string) bool {
	switch role {
	case "owner", "manager", "staff":
		return true
	}
	return false
}

func accountIDFromContext(ctx context.Context) uuid.UUID {
	raw := middleware.AccountIDFromContext(ctx)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func tenantIDFromContext(ctx context.Context) uuid.UUID {
	raw := middleware.TenantIDFromContext(ctx)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}
