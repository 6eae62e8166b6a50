package httpapi

import (
	"database/sql"
	"net"
	"net/http"

	"leadboard-engine/internal/store"
)

type DBHandler struct {
	DB *sql.DB
}

// Checkpoint folds the WAL into the database file so the desktop shell can
// copy it safely. Loopback callers only.
func (h DBHandler) Checkpoint(w http.ResponseWriter, r *http.Request) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(host); host != "localhost" && (ip == nil || !ip.IsLoopback()) {
		WriteError(w, r, http.StatusForbidden, "forbidden", "checkpoint is local only")
		return
	}

	res, err := store.Checkpoint(r.Context(), h.DB)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	writeJSON(w, res)
}
