// Package api provides HTTP API handlers for the jointtrack recorder.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/jointtrack/internal/app"
	"github.com/ayusman/jointtrack/internal/calibration"
	"github.com/ayusman/jointtrack/internal/export"
	"github.com/ayusman/jointtrack/internal/session"
	"github.com/ayusman/jointtrack/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInvalidTransition),
		errors.Is(err, export.ErrFileInUse),
		errors.Is(err, app.ErrNoFrame):
		return http.StatusConflict
	case errors.Is(err, calibration.ErrInvalidDistance),
		errors.Is(err, calibration.ErrInvalidUnit),
		errors.Is(err, calibration.ErrInvalidFrame),
		errors.Is(err, calibration.ErrIncompletePick),
		errors.Is(err, export.ErrInvalidFileName):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeErr writes err with the status statusFor picks.
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}
