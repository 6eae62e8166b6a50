package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// NewMux returns the raw mux so main() can still attach /shutdown (needs srv+token).
func NewMux(d Deps) *http.ServeMux {
	d = d.withDefaults()
	mux := http.NewServeMux()

	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: HealthHandler{Repo: d.Repo}.Health,
	}))

	// Leads
	lh := LeadsHandler{Repo: d.Repo, CfgVal: d.CfgVal, Now: d.Now}
	mux.HandleFunc("/leads", methodMux(map[string]http.HandlerFunc{
		http.MethodGet:  lh.List,
		http.MethodPost: lh.Create,
	}))
	mux.HandleFunc("/leads/", methodMux(map[string]http.HandlerFunc{
		http.MethodGet:    lh.GetByPath, // expects /leads/{id}
		http.MethodPut:    lh.UpdateByPath,
		http.MethodDelete: lh.DeleteByPath,
	}))
	mux.HandleFunc("/leads/options", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: lh.Options,
	}))

	// Files
	fh := FilesHandler{Repo: d.Repo, CfgVal: d.CfgVal, Now: d.Now, Log: d.Log}
	mux.HandleFunc("/leads/import", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: fh.Import,
	}))
	mux.HandleFunc("/leads/export", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: fh.Export,
	}))

	// Sync
	sh := SyncHandler{Repo: d.Repo, Syncer: d.Syncer, DB: d.DB}
	mux.HandleFunc("/sync/status", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: sh.Status,
	}))
	mux.HandleFunc("/sync/run", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sh.Run,
	}))

	// Config
	ch := ConfigHandler{
		CfgVal:      d.CfgVal,
		UserCfgPath: d.UserCfgPath,
		LoadCfg:     d.LoadCfg,
		Log:         d.Log,
	}
	mux.HandleFunc("/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Get,
		http.MethodPut: ch.Put,
	}))
	mux.HandleFunc("/config/path", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Path,
	}))
	mux.HandleFunc("/config/validate", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Validate,
	}))

	// Secrets (use cfgVal, NOT a snapshot cfg)
	sec := SecretsHandler{CfgVal: d.CfgVal, Set: d.SetOAuth, Delete: d.DeleteOAuth}
	mux.HandleFunc("/api/secrets/oauth", methodMux(map[string]http.HandlerFunc{
		http.MethodPost:   sec.SetOAuth,
		http.MethodDelete: sec.DeleteOAuth,
	}))

	// SSE events
	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	}))

	if d.DB != nil {
		dbh := DBHandler{DB: d.DB}
		mux.HandleFunc("/db/checkpoint", methodMux(map[string]http.HandlerFunc{
			http.MethodPost: dbh.Checkpoint,
		}))
	}

	return mux
}

// Handler wraps mux in the standard middleware chain. origins is the CORS
// allow-list; none admits any origin.
func Handler(mux http.Handler, log *zap.Logger, origins ...string) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return Chain(mux, RequestID, Recover(log), AccessLog(log), Cors(origins...))
}
