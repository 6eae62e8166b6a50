package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// Score caps per table. Completeness (40) and follow-ups (10) are fixed.
const (
	MaxStagePoints  = 30
	MaxStatusPoints = 20
)

// NormalizeAndValidate returns a normalized copy of cfg and the problems found.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	origins := make([]string, len(cfg.App.AllowedOrigins))
	for i, o := range cfg.App.AllowedOrigins {
		origins[i] = strings.TrimRight(strings.TrimSpace(o), "/")
	}
	out.App.AllowedOrigins = trimList(origins)
	out.FollowUps.ClosedStatuses = trimList(out.FollowUps.ClosedStatuses)
	out.FollowUps.ClosedStages = trimList(out.FollowUps.ClosedStages)
	out.Sheets.SpreadsheetID = strings.TrimSpace(out.Sheets.SpreadsheetID)
	out.Sheets.IDColumn = strings.ToUpper(strings.TrimSpace(out.Sheets.IDColumn))
	out.Sheets.Columns = strings.ToUpper(strings.TrimSpace(out.Sheets.Columns))
	out.Cache.Backend = strings.ToLower(strings.TrimSpace(out.Cache.Backend))
	out.Sync.Mode = strings.ToLower(strings.TrimSpace(out.Sync.Mode))
	out.Log.Level = strings.ToLower(strings.TrimSpace(out.Log.Level))

	// ---- Validation rules ----

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}
	for _, o := range out.App.AllowedOrigins {
		if !isOrigin(o) {
			res.addErr("app.allowed_origins: %q must be \"*\" or scheme://host[:port]", o)
		}
	}

	switch out.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		res.addErr("log.level must be one of debug, info, warn, error")
	}

	// sheets
	if out.Sheets.SpreadsheetID == "" {
		res.addWarn("sheets.spreadsheet_id is empty; the engine will serve sample leads only.")
	}
	if strings.TrimSpace(out.Sheets.SheetName) == "" {
		res.addErr("sheets.sheet_name is required")
	}
	if !isColumn(out.Sheets.IDColumn) {
		res.addErr("sheets.id_column must be a column letter (got %q)", out.Sheets.IDColumn)
	}
	if first, last, ok := strings.Cut(out.Sheets.Columns, ":"); !ok || !isColumn(first) || !isColumn(last) {
		res.addErr("sheets.columns must look like A:ZZ (got %q)", out.Sheets.Columns)
	}
	if out.Sheets.RequestsPerMinute <= 0 {
		res.addErr("sheets.requests_per_minute must be > 0")
	} else if out.Sheets.RequestsPerMinute > 300 {
		res.addWarn("sheets.requests_per_minute is %d; the Sheets API quota is usually 60 per user.", out.Sheets.RequestsPerMinute)
	}
	if out.Sheets.TimeoutSeconds <= 0 {
		res.addErr("sheets.timeout_seconds must be > 0")
	}
	if out.Sheets.SpreadsheetID != "" && strings.TrimSpace(out.OAuth.ClientID) == "" {
		res.addErr("oauth.client_id is required when sheets.spreadsheet_id is set")
	}

	// cache
	if out.Cache.FreshnessSeconds <= 0 {
		res.addErr("cache.freshness_seconds must be > 0")
	}
	switch out.Cache.Backend {
	case BackendSQLite, BackendNone:
	case BackendRedis:
		if strings.TrimSpace(out.Cache.RedisAddr) == "" {
			res.addErr("cache.redis_addr is required when cache.backend=redis")
		}
		if strings.TrimSpace(out.Cache.RedisKey) == "" {
			res.addErr("cache.redis_key is required when cache.backend=redis")
		}
	default:
		res.addErr("cache.backend must be one of sqlite, redis, none")
	}

	// sync
	switch out.Sync.Mode {
	case ModeCacheOnly:
		res.addWarn("sync.mode=cache_only: added, deleted and imported leads are not written to the sheet and are lost on the next refresh.")
	case ModeWriteThrough:
	default:
		res.addErr("sync.mode must be cache_only or write_through")
	}
	if out.Sync.AddDelayMS < 0 || out.Sync.DeleteDelayMS < 0 || out.Sync.ImportDelayMS < 0 {
		res.addErr("sync delays must be >= 0")
	}

	// polling
	if out.Polling.RefreshSeconds < 0 {
		res.addErr("polling.refresh_seconds must be >= 0")
	} else if out.Polling.RefreshSeconds > 0 && out.Polling.RefreshSeconds < out.Cache.FreshnessSeconds {
		res.addWarn("polling.refresh_seconds (%d) is shorter than cache.freshness_seconds (%d); refreshes will mostly hit the cache window anyway.",
			out.Polling.RefreshSeconds, out.Cache.FreshnessSeconds)
	}

	// scoring
	checkTable := func(name string, table map[string]float64, max float64) {
		keys := make([]string, 0, len(table))
		for k := range table {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if strings.TrimSpace(k) == "" {
				res.addErr("%s has an empty key", name)
				continue
			}
			if p := table[k]; p < 0 || p > max {
				res.addErr("%s[%q] must be 0..%v (got %v)", name, k, max, p)
			}
		}
	}
	checkTable("scoring.stage_points", out.Scoring.StagePoints, MaxStagePoints)
	checkTable("scoring.status_points", out.Scoring.StatusPoints, MaxStatusPoints)

	// follow-ups
	if len(out.FollowUps.ExpectedDays) != 4 {
		res.addErr("followups.expected_days must have exactly 4 entries")
	} else {
		for i, d := range out.FollowUps.ExpectedDays {
			if d < 0 {
				res.addErr("followups.expected_days[%d] must be >= 0", i)
			}
			if i > 0 && d <= out.FollowUps.ExpectedDays[i-1] {
				res.addErr("followups.expected_days must be strictly increasing")
				break
			}
		}
	}
	if len(out.FollowUps.ClosedStatuses) == 0 && len(out.FollowUps.ClosedStages) == 0 {
		res.addWarn("no closed statuses or stages configured; every lead counts as open.")
	}

	return out, res
}

func isOrigin(s string) bool {
	if s == "*" {
		return true
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	return u.Path == "" && u.RawQuery == "" && u.Fragment == "" && u.User == nil
}

func isColumn(s string) bool {
	if s == "" || len(s) > 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
