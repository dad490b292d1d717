package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/serataapp/serata-backend/api/middleware"
	"github.com/serataapp/serata-backend/api/responses"
	"github.com/serataapp/serata-backend/api/validators"
	"github.com/serataapp/serata-backend/internal/guestlists"
	pkgerrors "github.com/serataapp/serata-backend/pkg/errors"
	"github.com/serataapp/serata-backend/pkg/logger"
	"github.com/serataapp/serata-backend/pkg/pagination"
)

type guestListCreateRequest struct {
	EventID                  string `json:"event_id" validate:"required,uuid"`
	Name                     string `json:"name" validate:"required,min=1"`
	Capacity                 *int   `json:"capacity,omitempty" validate:"omitempty,min=0"`
	AutoApproveCancellations bool   `json:"auto_approve_cancellations"`
}

type guestListUpdateRequest struct {
	Name                     *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Capacity                 *int    `json:"capacity,omitempty" validate:"omitempty,min=0"`
	CapacitySet              bool    `json:"capacity_set"`
	Active                   *bool   `json:"active,omitempty"`
	AutoApproveCancellations *bool   `json:"auto_approve_cancellations,omitempty"`
}

type addGuestRequest struct {
	FirstName string `json:"first_name" validate:"required,min=1"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Email     string `json:"email" validate:"omitempty,email"`
	Instagram string `json:"instagram"`
}

// GuestListCreate opens a list on an event. The creator is recorded for
// the creator-always-wins authorization rule.
func GuestListCreate(svc *guestlists.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body guestListCreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		eventID, err := uuid.Parse(body.EventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event id"))
			return
		}

		tenantID := tenantIDFromContext(r.Context())
		if tenantID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "tenant context missing"))
			return
		}

		list, err := svc.CreateList(r.Context(), guestlists.CreateListInput{
			TenantID:                 tenantID,
			EventID:                  eventID,
			Name:                     body.Name,
			Capacity:                 body.Capacity,
			AutoApproveCancellations: body.AutoApproveCancellations,
			Actor:                    actorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, list)
	}
}

// GuestListGet loads one list.
func GuestListGet(svc *guestlists.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "listId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.GetList(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// GuestListByEvent lists the lists on one event.
func GuestListByEvent(svc *guestlists.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, err := validators.ParseQueryUUID(r, "event_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if eventID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "event_id query parameter required"))
			return
		}

		lists, err := svc.ListByEvent(r.Context(), eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, lists)
	}
}

// GuestListUpdate applies a partial update to a list.
func GuestListUpdate(svc *guestlists.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "listId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body guestListUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.UpdateList(r.Context(), id, guestlists.UpdateListInput{
			Name:                     body.Name,
			Capacity:                 body.Capacity,
			CapacitySet:              body.CapacitySet || body.Capacity != nil,
			Active:                   body.Active,
			AutoApproveCancellations: body.AutoApproveCancellations,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// GuestAdd admits one guest onto a list. Promoter callers go through
// assignment authorization and quotas; staff bypass both.
func GuestAdd(svc *guestlists.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listID, err := validators.ParseUUIDParam(r, "listId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body addGuestRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		role := middleware.RoleFromContext(r.Context())
		entry, err := svc.AddGuest(r.Context(), guestlists.AddGuestInput{
			GuestListID:   listID,
			FirstName:     body.FirstName,
			LastName:      body.LastName,
			Phone:         body.Phone,
			Email:         body.Email,
			Instagram:     body.Instagram,
			Actor:         actorFromContext(r.Context()),
			ActorRole:     role,
			StaffOverride: staffOverride(role),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

// GuestEntryList pages through a list's entries.
func GuestEntryList(svc *guestlists.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listID, err := validators.ParseUUIDParam(r, "listId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListEntries(r.Context(), listID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"entries":     page.Entries,
			"next_cursor": page.NextCursor,
		})
	}
}

// GuestEntryConfirm marks a pending entry confirmed.
func GuestEntryConfirm(svc *guestlists.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entryID, err := validators.ParseUUIDParam(r, "entryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.ConfirmEntry(r.Context(), entryID, actorFromContext(r.Context()), middleware.RoleFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, entry)
	}
}

// GuestEntryCancel cancels an entry and releases its slot.
func GuestEntryCancel(svc *guestlists.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entryID, err := validators.ParseUUIDParam(r, "entryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.CancelEntry(r.Context(), entryID, actorFromContext(r.Context()), middleware.RoleFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, entry)
	}
}
