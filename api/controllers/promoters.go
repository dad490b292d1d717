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

type promoterCreateRequest struct {
	DisplayName  string `json:"display_name" validate:"required,min=1"`
	PromoterCode string `json:"promoter_code" validate:"required,min=2"`
	Phone        string `json:"phone"`
	Email        string `json:"email" validate:"omitempty,email"`
	AccountID    string `json:"account_id" validate:"omitempty,uuid"`
}

type promoterUpdateRequest struct {
	DisplayName *string `json:"display_name,omitempty" validate:"omitempty,min=1"`
	Phone       *string `json:"phone,omitempty"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
}

type promoterActiveRequest struct {
	Active bool `json:"active"`
}

// PromoterCreate registers a promoter profile in the caller's tenant.
func PromoterCreate(svc *promoters.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body promoterCreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tenantID := tenantIDFromContext(r.Context())
		if tenantID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "tenant context missing"))
			return
		}

		input := promoters.CreateInput{
			TenantID:     tenantID,
			DisplayName:  body.DisplayName,
			PromoterCode: body.PromoterCode,
			Phone:        body.Phone,
			Email:        body.Email,
		}
		if body.AccountID != "" {
			accountID, err := uuid.Parse(body.AccountID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid account id"))
				return
			}
			input.AccountID = &accountID
		}

		profile, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, profile)
	}
}

// PromoterGet loads one profile by id.
func PromoterGet(svc *promoters.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "promoterId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, profile)
	}
}

// PromoterList returns the tenant roster, newest names first.
func PromoterList(svc *promoters.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := tenantIDFromContext(r.Context())
		if tenantID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "tenant context missing"))
			return
		}

		activeOnly := r.URL.Query().Get("active") == "true"
		profiles, err := svc.ListByTenant(r.Context(), tenantID, activeOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, profiles)
	}
}

// PromoterUpdate edits a profile's contact fields.
func PromoterUpdate(svc *promoters.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "promoterId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body promoterUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.Update(r.Context(), id, promoters.UpdateInput{
			DisplayName: body.DisplayName,
			Phone:       body.Phone,
			Email:       body.Email,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, profile)
	}
}

// PromoterSetActive toggles the profile. Deactivation also revokes the
// mobile session token.
func PromoterSetActive(svc *promoters.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "promoterId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body promoterActiveRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.SetActive(r.Context(), id, body.Active)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, profile)
	}
}
