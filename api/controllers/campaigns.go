package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/serataapp/serata-backend/api/middleware"
	"github.com/serataapp/serata-backend/api/responses"
	"github.com/serataapp/serata-backend/api/validators"
	"github.com/serataapp/serata-backend/internal/campaigns"
	pkgerrors "github.com/serataapp/serata-backend/pkg/errors"
	"github.com/serataapp/serata-backend/pkg/logger"
	"github.com/serataapp/serata-backend/pkg/outbox"
)

type campaignQueueBody struct {
	RecipientIdentityID string `json:"recipient_identity_id" validate:"required,uuid"`
	Channel             string `json:"channel" validate:"omitempty,oneof=email sms whatsapp"`
}

// CampaignQueue marks one recipient as sent and queues the delivery
// event. A repeat call for the same pair reports queued=false.
func CampaignQueue(svc *campaigns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaignID, err := validators.ParseUUIDParam(r, "campaignId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body campaignQueueBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		recipientID, err := uuid.Parse(body.RecipientIdentityID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid recipient identity id"))
			return
		}

		accountID := accountIDFromContext(r.Context())
		var actor *outbox.ActorRef
		if accountID != uuid.Nil {
			actor = &outbox.ActorRef{
				AccountID: &accountID,
				Role:      middleware.RoleFromContext(r.Context()),
			}
		}

		queued, err := svc.Queue(r.Context(), campaigns.QueueInput{
			CampaignID:          campaignID,
			RecipientIdentityID: recipientID,
			Channel:             body.Channel,
			Actor:               actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"queued": queued})
	}
}

// CampaignSentCount returns how many recipients a campaign reached.
func CampaignSentCount(svc *campaigns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaignID, err := validators.ParseUUIDParam(r, "campaignId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		count, err := svc.SentCount(r.Context(), campaignID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"sent_count": count})
	}
}
