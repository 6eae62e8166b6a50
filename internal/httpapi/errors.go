package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"leadboard-engine/internal/ingest/sheets"
	"leadboard-engine/internal/poll"
	"leadboard-engine/internal/repo"
)

type APIError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var e APIError
	e.Error.Code = code
	e.Error.Message = message
	e.Error.RequestID = RequestIDFrom(r.Context())
	WriteJSON(w, status, e)
}

// writeErr maps domain errors onto the API envelope. Anything unrecognized is
// treated as a failure talking to the sheet.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		WriteError(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, repo.ErrDuplicateID):
		WriteError(w, r, http.StatusConflict, "duplicate_id", err.Error())
	case errors.Is(err, repo.ErrNoSource), errors.Is(err, sheets.ErrNoCredentials):
		WriteError(w, r, http.StatusServiceUnavailable, "sheet_not_configured", err.Error())
	case errors.Is(err, poll.ErrRunning):
		WriteError(w, r, http.StatusConflict, "sync_running", err.Error())
	case errors.Is(err, context.Canceled):
		WriteError(w, r, http.StatusRequestTimeout, "canceled", err.Error())
	default:
		WriteError(w, r, http.StatusBadGateway, "upstream_error", err.Error())
	}
}
