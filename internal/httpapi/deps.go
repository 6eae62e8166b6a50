package httpapi

import (
	"database/sql"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"leadboard-engine/internal/config"
	"leadboard-engine/internal/events"
	"leadboard-engine/internal/followup"
	"leadboard-engine/internal/poll"
	"leadboard-engine/internal/rank"
	"leadboard-engine/internal/repo"
	"leadboard-engine/internal/secrets"
	"leadboard-engine/internal/view"
)

type Deps struct {
	Repo   *repo.Repository
	Syncer *poll.Syncer

	// DB holds sync run history; nil when the engine runs without SQLite.
	DB *sql.DB

	Hub *events.Hub
	Log *zap.Logger

	// Atomic stores
	CfgVal *atomic.Value // stores config.Config

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	// Inject for testability; default to the OS keychain and the wall clock.
	SetOAuth    func(account string, o secrets.OAuth) error
	DeleteOAuth func(account string) error
	Now         func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.SetOAuth == nil {
		d.SetOAuth = secrets.SetOAuth
	}
	if d.DeleteOAuth == nil {
		d.DeleteOAuth = secrets.DeleteOAuth
	}
	return d
}

// deriverFor builds the score and follow-up rules from the live config, so a
// saved config takes effect on the next request.
func deriverFor(cfgVal *atomic.Value) view.Deriver {
	cfg := cfgVal.Load().(config.Config)
	return view.Deriver{
		Scorer: rank.NewTableScorer(cfg),
		Policy: followup.NewPolicy(cfg),
	}
}

// PublishChanges forwards repository changes to SSE subscribers.
func PublishChanges(hub *events.Hub) func(repo.Change) {
	return func(c repo.Change) {
		hub.Publish(events.MakeEvent("", string(c.Kind), events.Version, c))
	}
}
