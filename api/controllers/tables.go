package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/serataapp/serata-backend/api/middleware"
	"github.com/serataapp/serata-backend/api/responses"
	"github.com/serataapp/serata-backend/api/validators"
	"github.com/serataapp/serata-backend/internal/tables"
	pkgerrors "github.com/serataapp/serata-backend/pkg/errors"
	"github.com/serataapp/serata-backend/pkg/logger"
)

type tableTypeCreateRequest struct {
	EventID      string          `json:"event_id" validate:"required,uuid"`
	Name         string          `json:"name" validate:"required,min=1"`
	TotalTables  int             `json:"total_tables" validate:"required,min=1"`
	MinimumSpend decimal.Decimal `json:"minimum_spend"`
}

type tableTypeUpdateRequest struct {
	Name         *string          `json:"name,omitempty" validate:"omitempty,min=1"`
	TotalTables  *int             `json:"total_tables,omitempty" validate:"omitempty,min=1"`
	MinimumSpend *decimal.Decimal `json:"minimum_spend,omitempty"`
	Active       *bool            `json:"active,omitempty"`
}

type participantRequest struct {
	FirstName string `json:"first_name" validate:"required,min=1"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

type bookingProposeRequest struct {
	TableTypeID  string               `json:"table_type_id" validate:"required,uuid"`
	GuestName    string               `json:"guest_name" validate:"required,min=1"`
	GuestPhone   string               `json:"guest_phone"`
	Notes        string               `json:"notes"`
	Participants []participantRequest `json:"participants" validate:"omitempty,dive"`
}

// TableTypeCreate opens a table pool on an event.
func TableTypeCreate(svc *tables.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body tableTypeCreateRequest
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

		tableType, err := svc.CreateTableType(r.Context(), tables.CreateTableTypeInput{
			TenantID:     tenantID,
			EventID:      eventID,
			Name:         body.Name,
			TotalTables:  body.TotalTables,
			MinimumSpend: body.MinimumSpend,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, tableType)
	}
}

// TableTypeGet loads one pool.
func TableTypeGet(svc *tables.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "tableTypeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tableType, err := svc.GetTableType(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, tableType)
	}
}

// TableTypeList lists the pools on an event.
func TableTypeList(svc *tables.Service, logg *logger.Logger) http.HandlerFunc {
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

		types, err := svc.ListTableTypes(r.Context(), eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, types)
	}
}

// TableTypeUpdate applies a partial update to a pool.
func TableTypeUpdate(svc *tables.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "tableTypeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body tableTypeUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tableType, err := svc.UpdateTableType(r.Context(), id, tables.UpdateTableTypeInput{
			Name:         body.Name,
			TotalTables:  body.TotalTables,
			MinimumSpend: body.MinimumSpend,
			Active:       body.Active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, tableType)
	}
}

// BookingPropose reserves a table from the pool and parks the booking in
// pending approval.
func BookingPropose(svc *tables.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body bookingProposeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tableTypeID, err := uuid.Parse(body.TableTypeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid table type id"))
			return
		}

		participants := make([]tables.ParticipantInput, 0, len(body.Participants))
		for _, p := range body.Participants {
			participants = append(participants, tables.ParticipantInput{
				FirstName: p.FirstName,
				LastName:  p.LastName,
				Phone:     p.Phone,
			})
		}

		role := middleware.RoleFromContext(r.Context())
		booking, err := svc.ProposeBooking(r.Context(), tables.ProposeBookingInput{
			TableTypeID:   tableTypeID,
			GuestName:     body.GuestName,
			GuestPhone:    body.GuestPhone,
			Notes:         body.Notes,
			Participants:  participants,
			Actor:         actorFromContext(r.Context()),
			ActorRole:     role,
			StaffOverride: staffOverride(role),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, booking)
	}
}

// BookingGet loads one booking with participants.
func BookingGet(svc *tables.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "bookingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		booking, err := svc.GetBooking(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, booking)
	}
}

// BookingList lists bookings on an event.
func BookingList(svc *tables.Service, logg *logger.Logger) http.HandlerFunc {
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

		bookings, err := svc.ListBookings(r.Context(), eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, bookings)
	}
}

// BookingApprove confirms a pending booking and mints participant
// credentials.
func BookingApprove(svc *tables.Service, logg *logger.Logger) http.HandlerFunc {
	return bookingDecision(svc, logg, true)
}

// BookingReject declines a pending booking and returns its table to the
// pool.
func BookingReject(svc *tables.Service, logg *logger.Logger) http.HandlerFunc {
	return bookingDecision(svc, logg, false)
}

func bookingDecision(svc *tables.Service, logg *logger.Logger, approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "bookingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		decidedBy := accountIDFromContext(r.Context())
		actor := actorFromContext(r.Context())
		role := middleware.RoleFromContext(r.Context())

		var booking any
		if approve {
			booking, err = svc.ApproveBooking(r.Context(), id, decidedBy, actor, role)
		} else {
			booking, err = svc.RejectBooking(r.Context(), id, decidedBy, actor, role)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, booking)
	}
}

// BookingCancel cancels an approved or pending booking and releases the
// table.
func BookingCancel(svc *tables.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "bookingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		booking, err := svc.CancelBooking(r.Context(), id, actorFromContext(r.Context()), middleware.RoleFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, booking)
	}
}
