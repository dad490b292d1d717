package middleware

import "context"

type contextKey string

const (
	ctxAccountID  contextKey = "account_id"
	ctxPromoterID contextKey = "promoter_profile_id"
	ctxRole       contextKey = "actor_role"
	ctxTenantID   contextKey = "tenant_id"
)

func AccountIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxAccountID)
}

func PromoterIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxPromoterID)
}

func RoleFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxRole)
}

func TenantIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxTenantID)
}

// WithAccountID injects the account identifier into the context.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxAccountID, accountID)
}

// WithPromoterID injects the promoter profile identifier.
func WithPromoterID(ctx context.Context, promoterID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxPromoterID, promoterID)
}

// WithTenantID injects the tenant identifier.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxTenantID, tenantID)
}

// WithRole injects the actor role.
func WithRole(ctx context.Context, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRole, role)
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
