package controllers

import (
	"net/http"

	"github.com/seangolding876/partsfinda-backend/api/responses"
	"github.com/seangolding876/partsfinda-backend/internal/monitor"
	"github.com/seangolding876/partsfinda-backend/pkg/logger"
)

// QueueStats reports queue depth, status counts, and delivery success rate.
func QueueStats(svc monitor.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.QueueStats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}
