package httpapi

import (
	"net/http"
	"sync/atomic"

	"leadboard-engine/internal/config"
	"leadboard-engine/internal/secrets"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // stores config.Config
	Set    func(account string, o secrets.OAuth) error
	Delete func(account string) error
}

func (h SecretsHandler) SetOAuth(w http.ResponseWriter, r *http.Request) {
	var req secrets.OAuth
	if !decodeJSON(w, r, 64<<10, &req) {
		return
	}

	cfg := h.CfgVal.Load().(config.Config)
	if err := h.Set(cfg.OAuth.KeyringAccount, req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "secret_store_failed", "failed to store credentials: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h SecretsHandler) DeleteOAuth(w http.ResponseWriter, r *http.Request) {
	cfg := h.CfgVal.Load().(config.Config)
	if err := h.Delete(cfg.OAuth.KeyringAccount); err != nil {
		WriteError(w, r, http.StatusBadRequest, "secret_store_failed", "failed to delete credentials: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
