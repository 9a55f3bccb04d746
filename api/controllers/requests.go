package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/seangolding876/partsfinda-backend/api/middleware"
	"github.com/seangolding876/partsfinda-backend/api/responses"
	"github.com/seangolding876/partsfinda-backend/api/validators"
	"github.com/seangolding876/partsfinda-backend/internal/requests"
	"github.com/seangolding876/partsfinda-backend/pkg/enums"
	pkgerrors "github.com/seangolding876/partsfinda-backend/pkg/errors"
	"github.com/seangolding876/partsfinda-backend/pkg/logger"
)

type CreateRequestBody struct {
	PartName     string           `json:"partName" validate:"required,min=2,max=160"`
	Category     string           `json:"category" validate:"required,min=2,max=80"`
	VehicleMake  string           `json:"vehicleMake" validate:"required,min=2,max=60"`
	VehicleModel string           `json:"vehicleModel" validate:"required,min=1,max=60"`
	VehicleYear  int              `json:"vehicleYear" validate:"required,min=1950,max=2100"`
	Parish       string           `json:"parish" validate:"required,min=2,max=60"`
	Urgency      string           `json:"urgency" validate:"required,oneof=low medium high"`
	Budget       *decimal.Decimal `json:"budget,omitempty"`
	Description  *string          `json:"description,omitempty" validate:"omitempty,max=2000"`
}

// SubmitRequest creates a part request and fans it out to eligible sellers.
func SubmitRequest(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body CreateRequestBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		urgency, err := enums.ParseRequestUrgency(body.Urgency)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid urgency"))
			return
		}

		if body.Budget != nil && body.Budget.IsNegative() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "budget must not be negative"))
			return
		}

		result, err := svc.Submit(r.Context(), requests.SubmitParams{
			BuyerID:      buyerID,
			PartName:     validators.SanitizeString(body.PartName, 160),
			Category:     validators.SanitizeString(body.Category, 80),
			VehicleMake:  validators.SanitizeString(body.VehicleMake, 60),
			VehicleModel: validators.SanitizeString(body.VehicleModel, 60),
			VehicleYear:  body.VehicleYear,
			Parish:       validators.SanitizeString(body.Parish, 60),
			Urgency:      urgency,
			Budget:       body.Budget,
			Description:  body.Description,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// GetRequest returns the buyer's request with its per-seller queue state.
func GetRequest(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requestID, err := uuid.Parse(chi.URLParam(r, "requestId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request id"))
			return
		}

		view, err := svc.GetForBuyer(r.Context(), buyerID, requestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func actorID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}
