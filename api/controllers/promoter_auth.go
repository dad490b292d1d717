package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/serataapp/serata-backend/api/responses"
	"github.com/serataapp/serata-backend/api/validators"
	"github.com/serataapp/serata-backend/internal/promoters"
	pkgerrors "github.com/serataapp/serata-backend/pkg/errors"
	"github.com/serataapp/serata-backend/pkg/logger"
)

type promoterTokenRequest struct {
	TenantID     string `json:"tenant_id" validate:"required,uuid"`
	PromoterCode string `json:"promoter_code" validate:"required"`
	Phone        string `json:"phone" validate:"required"`
}

// PromoterToken exchanges a promoter code plus phone for the opaque
// session token the mobile app carries. No password exists on this path.
func PromoterToken(svc *promoters.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body promoterTokenRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tenantID, err := uuid.Parse(body.TenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tenant id"))
			return
		}

		profile, token, err := svc.IssueToken(r.Context(), tenantID, body.PromoterCode, body.Phone)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"token":   token,
			"profile": profile,
		})
	}
}
