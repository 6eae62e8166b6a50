package httpapi

import (
	"net/http"

	"leadboard-engine/internal/repo"
)

type HealthHandler struct {
	Repo *repo.Repository
}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	st := h.Repo.State()
	writeJSON(w, map[string]any{
		"ok":     true,
		"origin": st.Origin,
		"leads":  st.Count,
		"mode":   st.Mode,
	})
}
