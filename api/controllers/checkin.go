package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/serataapp/serata-backend/api/responses"
	"github.com/serataapp/serata-backend/api/validators"
	"github.com/serataapp/serata-backend/internal/checkin"
	pkgerrors "github.com/serataapp/serata-backend/pkg/errors"
	"github.com/serataapp/serata-backend/pkg/logger"
)

type scanRequest struct {
	Code string `json:"code" validate:"required,min=1"`
}

// CheckInScan redeems a door credential. A replayed credential comes back
// as ALREADY_REDEEMED with the prior scan attached.
func CheckInScan(svc *checkin.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body scanRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		scannedBy := accountIDFromContext(r.Context())
		if scannedBy == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing credentials"))
			return
		}

		result, err := svc.Redeem(r.Context(), body.Code, scannedBy)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"kind":        result.Kind,
			"guest":       result.Guest,
			"participant": result.Participant,
			"scanned_at":  result.ScannedAt,
		})
	}
}
