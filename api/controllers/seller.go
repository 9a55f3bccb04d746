package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/seangolding876/partsfinda-backend/api/responses"
	"github.com/seangolding876/partsfinda-backend/api/validators"
	"github.com/seangolding876/partsfinda-backend/internal/queue"
	"github.com/seangolding876/partsfinda-backend/internal/quotes"
	"github.com/seangolding876/partsfinda-backend/internal/sellers"
	pkgerrors "github.com/seangolding876/partsfinda-backend/pkg/errors"
	"github.com/seangolding876/partsfinda-backend/pkg/logger"
)

type CreateQuoteBody struct {
	RequestID     string          `json:"requestId" validate:"required,uuid"`
	Price         decimal.Decimal `json:"price" validate:"required"`
	Availability  string          `json:"availability" validate:"required,max=120"`
	DeliveryTime  string          `json:"deliveryTime" validate:"required,max=120"`
	Warranty      *string         `json:"warranty,omitempty" validate:"omitempty,max=120"`
	PartCondition *string         `json:"partCondition,omitempty" validate:"omitempty,max=60"`
	Notes         *string         `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// SellerRequests returns the delivered, still-open requests matched to the
// authenticated seller.
func SellerRequests(sellerRepo sellers.Repository, queueSvc queue.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := sellerRepo.GetByUserID(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, err := queueSvc.SellerFeed(r.Context(), profile.ID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"entries": entries})
	}
}

// CreateQuote records a seller quote against a delivered queue entry.
func CreateQuote(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body CreateQuoteBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requestID, err := uuid.Parse(body.RequestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request id"))
			return
		}

		if body.Price.IsNegative() || body.Price.IsZero() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive"))
			return
		}

		result, err := svc.Create(r.Context(), quotes.CreateParams{
			SellerUserID:  userID,
			RequestID:     requestID,
			Price:         body.Price,
			Availability:  body.Availability,
			DeliveryTime:  validators.SanitizeString(body.DeliveryTime, 120),
			Warranty:      body.Warranty,
			PartCondition: body.PartCondition,
			Notes:         body.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
