package utils

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/tgvault/tgvault/internal/apperrors"
)

type Payload struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// JSONResponse sends a JSON response with given status, success flag, and payload
func JSONResponse(w http.ResponseWriter, status int, payload Payload) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// ErrorResponse maps any error through the apperrors taxonomy and writes
// the structured failure payload.
func ErrorResponse(w http.ResponseWriter, err error) {
	appErr := apperrors.From(err)
	if appErr.Status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("code", appErr.Code).Msg("Request failed")
	}
	JSONResponse(w, appErr.Status, Payload{
		Success: false,
		Message: appErr.Message,
		Code:    appErr.Code,
	})
}
