package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/serataapp/serata-backend/api/middleware"
	"github.com/serataapp/serata-backend/api/responses"
	"github.com/serataapp/serata-backend/api/validators"
	"github.com/serataapp/serata-backend/internal/cancellations"
	"github.com/serataapp/serata-backend/pkg/enums"
	pkgerrors "github.com/serataapp/serata-backend/pkg/errors"
	"github.com/serataapp/serata-backend/pkg/logger"
)

type cancellationRequestBody struct {
	GuestListEntryID string `json:"guest_list_entry_id" validate:"omitempty,uuid"`
	TableBookingID   string `json:"table_booking_id" validate:"omitempty,uuid"`
	Reason           string `json:"reason"`
}

// CancellationCreate files a cancellation request. When the owning guest
// list auto-approves, the target cancels in the same call.
func CancellationCreate(svc *cancellations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body cancellationRequestBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tenantID := tenantIDFromContext(r.Context())
		if tenantID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "tenant context missing"))
			return
		}

		input := cancellations.RequestInput{
			TenantID:  tenantID,
			Reason:    body.Reason,
			Actor:     actorFromContext(r.Context()),
			ActorRole: middleware.RoleFromContext(r.Context()),
		}
		if body.GuestListEntryID != "" {
			entryID, err := uuid.Parse(body.GuestListEntryID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid guest list entry id"))
				return
			}
			input.GuestListEntryID = &entryID
		}
		if body.TableBookingID != "" {
			bookingID, err := uuid.Parse(body.TableBookingID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid table booking id"))
				return
			}
			input.TableBookingID = &bookingID
		}

		request, err := svc.Request(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, request)
	}
}

// CancellationGet loads one request.
func CancellationGet(svc *cancellations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "cancellationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, request)
	}
}

// CancellationList returns the tenant's requests, optionally filtered by
// status.
func CancellationList(svc *cancellations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := tenantIDFromContext(r.Context())
		if tenantID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "tenant context missing"))
			return
		}

		var status *enums.CancellationStatus
		if raw := r.URL.Query().Get("status"); raw != "" {
			parsed, err := enums.ParseCancellationStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			status = &parsed
		}

		requests, err := svc.ListByTenant(r.Context(), tenantID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, requests)
	}
}

// CancellationApprove approves a pending request and cancels its target.
func CancellationApprove(svc *cancellations.Service, logg *logger.Logger) http.HandlerFunc {
	return cancellationDecision(svc, logg, true)
}

// CancellationReject declines a pending request, leaving the target
// untouched.
func CancellationReject(svc *cancellations.Service, logg *logger.Logger) http.HandlerFunc {
	return cancellationDecision(svc, logg, false)
}

func cancellationDecision(svc *cancellations.Service, logg *logger.Logger, approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "cancellationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		decidedBy := accountIDFromContext(r.Context())
		actor := actorFromContext(r.Context())
		role := middleware.RoleFromContext(r.Context())

		var request any
		if approve {
			request, err = svc.Approve(r.Context(), id, decidedBy, actor, role)
		} else {
			request, err = svc.Reject(r.Context(), id, decidedBy, actor, role)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, request)
	}
}
