package server

import (
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/dharsanguruparan/InvoiceDrop/internal/model"
)

const internalMessage = "internal server error"

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	// Headers must be set before WriteHeader.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("encode json response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	respondJSON(w, status, errorResponse{Error: message})
}

func mapErrorToHTTPStatus(err error) int {
	switch {
	case model.IsKind(err, model.ErrValidation):
		return http.StatusBadRequest
	case model.IsKind(err, model.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError maps err to a status and a client-safe message. Internal
// faults are logged with their detail and a stack trace, and answered
// generically.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	switch status {
	case http.StatusBadRequest:
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			writeError(w, status, verr.Error())
			return
		}
		writeError(w, status, model.ErrValidation.Error())
	case http.StatusNotFound:
		writeError(w, status, model.ErrNotFound.Error())
	default:
		hlog.FromRequest(r).Error().Stack().Err(pkgerrors.WithStack(err)).Msg("request failed")
		writeError(w, status, internalMessage)
	}
}
