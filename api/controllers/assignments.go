package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/serataapp/serata-backend/api/responses"
	"github.com/serataapp/serata-backend/api/validators"
	"github.com/serataapp/serata-backend/internal/assignments"
	pkgerrors "github.com/serataapp/serata-backend/pkg/errors"
	"github.com/serataapp/serata-backend/pkg/logger"
)

type assignmentCreateRequest struct {
	EventID           string `json:"event_id" validate:"required,uuid"`
	PromoterProfileID string `json:"promoter_profile_id" validate:"omitempty,uuid"`
	CanAddToGuests    bool   `json:"can_add_to_guests"`
	CanProposeTables  bool   `json:"can_propose_tables"`
}

type narrowRequest struct {
	Quota *int `json:"quota,omitempty" validate:"omitempty,min=0"`
}

// AssignmentCreate grants a promoter capabilities on an event.
func AssignmentCreate(registry *assignments.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body assignmentCreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		eventID, err := uuid.Parse(body.EventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event id"))
			return
		}

		input := assignments.CreateInput{
			EventID:          eventID,
			CanAddToGuests:   body.CanAddToGuests,
			CanProposeTables: body.CanProposeTables,
			CreatedBy:        accountIDFromContext(r.Context()),
		}
		if body.PromoterProfileID != "" {
			profileID, parseErr := uuid.Parse(body.PromoterProfileID)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid promoter profile id"))
				return
			}
			input.PromoterProfileID = &profileID
		}

		assignment, err := registry.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, assignment)
	}
}

// AssignmentListByEvent returns every grant on an event.
func AssignmentListByEvent(registry *assignments.Registry, logg *logger.Logger) http.HandlerFunc {
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

		rows, err := registry.ListByEvent(r.Context(), eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, rows)
	}
}

// AssignmentDeactivate revokes a grant. Existing entries stay attributed.
func AssignmentDeactivate(registry *assignments.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := registry.Deactivate(r.Context(), id, time.Now().UTC()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deactivated"})
	}
}

// AssignmentNarrowList restricts a grant to one guest list, optionally
// with a personal quota.
func AssignmentNarrowList(registry *assignments.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assignmentID, err := validators.ParseUUIDParam(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listID, err := validators.ParseUUIDParam(r, "listId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body narrowRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		narrowed, err := registry.NarrowToList(r.Context(), assignmentID, listID, body.Quota)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, narrowed)
	}
}

// AssignmentNarrowTableType restricts a grant to one table type.
func AssignmentNarrowTableType(registry *assignments.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assignmentID, err := validators.ParseUUIDParam(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tableTypeID, err := validators.ParseUUIDParam(r, "tableTypeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body narrowRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		narrowed, err := registry.NarrowToTableType(r.Context(), assignmentID, tableTypeID, body.Quota)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, narrowed)
	}
}
