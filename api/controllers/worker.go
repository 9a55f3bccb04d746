package controllers

import (
	"net/http"

	"github.com/seangolding876/partsfinda-backend/api/responses"
	"github.com/seangolding876/partsfinda-backend/api/validators"
	"github.com/seangolding876/partsfinda-backend/internal/supervisor"
	pkgerrors "github.com/seangolding876/partsfinda-backend/pkg/errors"
	"github.com/seangolding876/partsfinda-backend/pkg/logger"
)

type WorkerControlBody struct {
	Action string `json:"action" validate:"required,oneof=start stop restart"`
}

// WorkerStatus reports the dispatch worker lifecycle state.
func WorkerStatus(sup *supervisor.Supervisor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sup == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "worker supervisor unavailable"))
			return
		}
		responses.WriteSuccess(w, sup.Status())
	}
}

// WorkerControl starts, stops, or restarts the dispatch worker.
func WorkerControl(sup *supervisor.Supervisor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sup == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "worker supervisor unavailable"))
			return
		}

		var body WorkerControlBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var err error
		switch body.Action {
		case "start":
			err = sup.Start(r.Context())
		case "stop":
			err = sup.Stop(r.Context())
		case "restart":
			err = sup.Restart(r.Context())
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, sup.Status())
	}
}
