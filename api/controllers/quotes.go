package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/seangolding876/partsfinda-backend/api/responses"
	"github.com/seangolding876/partsfinda-backend/internal/quotes"
	pkgerrors "github.com/seangolding876/partsfinda-backend/pkg/errors"
	"github.com/seangolding876/partsfinda-backend/pkg/logger"
)

// AcceptQuote marks a quote accepted, rejects its rivals, and opens the
// buyer-seller conversation. At most one quote per request can win.
func AcceptQuote(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quoteID, err := uuid.Parse(chi.URLParam(r, "quoteId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid quote id"))
			return
		}

		result, err := svc.Accept(r.Context(), buyerID, quoteID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
