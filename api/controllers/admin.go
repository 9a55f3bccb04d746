package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/seangolding876/partsfinda-backend/api/responses"
	"github.com/seangolding876/partsfinda-backend/api/validators"
	"github.com/seangolding876/partsfinda-backend/internal/monitor"
	pkgerrors "github.com/seangolding876/partsfinda-backend/pkg/errors"
	"github.com/seangolding876/partsfinda-backend/pkg/logger"
)

// SuccessfulRequests lists fulfilled requests with their winning quote and
// conversation activity.
func SuccessfulRequests(svc monitor.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.SuccessfulRequests(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"requests": rows})
	}
}

// RequestTrace returns the full dispatch trail for one request.
func RequestTrace(svc monitor.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID, err := uuid.Parse(chi.URLParam(r, "requestId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request id"))
			return
		}

		rows, err := svc.RequestTrace(r.Context(), requestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"trace": rows})
	}
}
