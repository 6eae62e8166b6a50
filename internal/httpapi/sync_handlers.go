package httpapi

import (
	"database/sql"
	"errors"
	"net/http"

	"leadboard-engine/internal/poll"
	"leadboard-engine/internal/repo"
	"leadboard-engine/internal/store"
)

type SyncHandler struct {
	Repo   *repo.Repository
	Syncer *poll.Syncer
	DB     *sql.DB
}

type syncStatus struct {
	Sync  poll.Status     `json:"sync"`
	Cache repo.State      `json:"cache"`
	Runs  []store.SyncRun `json:"runs"`
}

func (h SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	out := syncStatus{
		Sync:  h.Syncer.Status(),
		Cache: h.Repo.State(),
		Runs:  []store.SyncRun{},
	}
	if h.DB != nil {
		runs, err := store.ListSyncRuns(r.Context(), h.DB, 20)
		if err != nil {
			WriteError(w, r, http.StatusInternalServerError, "db_error", err.Error())
			return
		}
		if runs != nil {
			out.Runs = runs
		}
	}
	writeJSON(w, out)
}

// Run starts a refresh in the background. With ?wait=1 it runs inline and
// answers with the mapping stats.
func (h SyncHandler) Run(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("wait") == "1" {
		stats, err := h.Syncer.RunOnce(r.Context(), poll.TriggerManual)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, map[string]any{"ok": true, "stats": stats})
		return
	}

	if err := h.Syncer.RunAsync(r.Context(), poll.TriggerManual); err != nil {
		if errors.Is(err, poll.ErrRunning) {
			writeJSON(w, map[string]any{"ok": false, "msg": "already running"})
			return
		}
		writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}
