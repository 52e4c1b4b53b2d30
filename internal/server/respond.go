package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/apperr"
)

// envelope is the response payload shape. Every response carries a success
// flag; failures additionally carry a human-readable message.
type envelope map[string]interface{}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload envelope) {
	if payload == nil {
		payload = envelope{}
	}
	payload["success"] = status < http.StatusBadRequest
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondError translates err's kind to an HTTP status and writes the failure
// envelope. Internal errors are logged here so handlers do not have to.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.respondJSON(w, status, envelope{"message": apperr.Message(err)})
}

func (s *Server) respondValidation(w http.ResponseWriter, format string, args ...interface{}) {
	s.respondError(w, apperr.Validation(format, args...))
}
