package rest

import (
	"encoding/json"
	"net/http"

	errx "github.com/voice-journal/core/internal/core/error"
	logx "github.com/voice-journal/core/pkg/logger"
)

type errorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logx.Error().Err(err).Msg("failed to encode response")
	}
}

// respondError maps err to its status. Caller mistakes are returned verbatim;
// server side failures only carry the safe message and are logged.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := errx.StatusOf(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		logx.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		message = errx.MessageOf(err)
	} else {
		logx.Debug().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request rejected")
	}
	respondJSON(w, status, errorResponse{Error: true, Message: message, Code: status})
}
