package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/seangolding876/partsfinda-backend/api/responses"
	"github.com/seangolding876/partsfinda-backend/api/validators"
	"github.com/seangolding876/partsfinda-backend/internal/messages"
	pkgerrors "github.com/seangolding876/partsfinda-backend/pkg/errors"
	"github.com/seangolding876/partsfinda-backend/pkg/logger"
	"github.com/seangolding876/partsfinda-backend/pkg/pagination"
)

type SendMessageBody struct {
	MessageText string `json:"messageText" validate:"required,min=1,max=4000"`
	TempID      string `json:"tempId,omitempty" validate:"omitempty,max=64"`
}

// ListMessages returns a page of conversation history in send order, with a
// cursor for older messages. Serves as the polling fallback when the
// websocket is unavailable.
func ListMessages(svc messages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		conversationID, err := uuid.Parse(chi.URLParam(r, "conversationId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid conversation id"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), userID, conversationID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// SendMessage appends a message over REST. Delivery to connected peers still
// goes through the websocket broadcaster.
func SendMessage(svc messages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		conversationID, err := uuid.Parse(chi.URLParam(r, "conversationId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid conversation id"))
			return
		}

		var body SendMessageBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Send(r.Context(), messages.SendParams{
			ConversationID: conversationID,
			SenderUserID:   userID,
			Text:           body.MessageText,
			TempID:         body.TempID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
