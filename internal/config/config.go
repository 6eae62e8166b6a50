// engine/internal/config/config.go
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Consistency modes for add/delete/import.
const (
	// ModeCacheOnly mutates the in-memory working set only; the sheet is untouched.
	ModeCacheOnly = "cache_only"
	// ModeWriteThrough also appends/deletes rows in the sheet.
	ModeWriteThrough = "write_through"
)

// Snapshot backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

type Config struct {
	App struct {
		Port    int    `yaml:"port"`
		DataDir string `yaml:"data_dir"`
		// Origins allowed to call the API from a browser; "*" admits any.
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
	} `yaml:"log"`

	Sheets struct {
		SpreadsheetID     string `yaml:"spreadsheet_id"`
		SheetName         string `yaml:"sheet_name"`
		Columns           string `yaml:"columns"`   // e.g. A:ZZ
		IDColumn          string `yaml:"id_column"` // column scanned by update
		Endpoint          string `yaml:"endpoint"`  // empty = Google
		RequestsPerMinute int    `yaml:"requests_per_minute"`
		TimeoutSeconds    int    `yaml:"timeout_seconds"`
	} `yaml:"sheets"`

	OAuth struct {
		ClientID       string `yaml:"client_id"`
		TokenURL       string `yaml:"token_url"` // empty = Google
		KeyringAccount string `yaml:"keyring_account"`
	} `yaml:"oauth"`

	Cache struct {
		FreshnessSeconds int    `yaml:"freshness_seconds"`
		Backend          string `yaml:"backend"`
		RedisAddr        string `yaml:"redis_addr"`
		RedisKey         string `yaml:"redis_key"`
		RedisTTLSeconds  int    `yaml:"redis_ttl_seconds"`
	} `yaml:"cache"`

	Sync struct {
		Mode          string `yaml:"mode"`
		AddDelayMS    int    `yaml:"add_delay_ms"`
		DeleteDelayMS int    `yaml:"delete_delay_ms"`
		ImportDelayMS int    `yaml:"import_delay_ms"`
	} `yaml:"sync"`

	Polling struct {
		RefreshSeconds int `yaml:"refresh_seconds"` // 0 disables
	} `yaml:"polling"`

	Scoring struct {
		StagePoints  map[string]float64 `yaml:"stage_points"`
		StatusPoints map[string]float64 `yaml:"status_points"`
	} `yaml:"scoring"`

	FollowUps struct {
		ExpectedDays   []int    `yaml:"expected_days"`
		ClosedStatuses []string `yaml:"closed_statuses"`
		ClosedStages   []string `yaml:"closed_stages"`
	} `yaml:"followups"`
}

// Default returns the built-in configuration. Each call allocates fresh maps.
func Default() Config {
	var cfg Config
	cfg.App.Port = 38472
	cfg.App.DataDir = "."
	cfg.App.AllowedOrigins = []string{"*"}

	cfg.Log.Level = "info"

	cfg.Sheets.SheetName = "◉ Leads"
	cfg.Sheets.Columns = "A:ZZ"
	cfg.Sheets.IDColumn = "A"
	cfg.Sheets.RequestsPerMinute = 60
	cfg.Sheets.TimeoutSeconds = 30

	cfg.OAuth.KeyringAccount = "leadboard:oauth"

	cfg.Cache.FreshnessSeconds = 300
	cfg.Cache.Backend = BackendSQLite
	cfg.Cache.RedisKey = "leadboard:leads:snapshot"
	cfg.Cache.RedisTTLSeconds = 86400

	cfg.Sync.Mode = ModeCacheOnly
	cfg.Sync.AddDelayMS = 800
	cfg.Sync.DeleteDelayMS = 600
	cfg.Sync.ImportDelayMS = 1000

	cfg.Polling.RefreshSeconds = 300

	cfg.Scoring.StagePoints = map[string]float64{
		"New Enquiry":     5,
		"Initial Contact": 10,
		"Trial Scheduled": 20,
		"Trial Completed": 25,
		"Membership Sold": 30,
		"Not Interested":  0,
		"Lost":            0,
	}
	cfg.Scoring.StatusPoints = map[string]float64{
		"Hot":       20,
		"Warm":      15,
		"Cold":      10,
		"Converted": 20,
		"Lost":      0,
	}

	cfg.FollowUps.ExpectedDays = []int{1, 3, 5, 7}
	cfg.FollowUps.ClosedStatuses = []string{"Converted", "Lost", "Not Interested", "Disqualified"}
	cfg.FollowUps.ClosedStages = []string{"Membership Sold", "Not Interested", "Lost"}
	return cfg
}

// Load reads path over the defaults, so keys missing from the file keep their
// built-in values. Score tables merge key by key.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	ApplyEnv(&cfg)
	return cfg, nil
}

func (c Config) Freshness() time.Duration {
	return time.Duration(c.Cache.FreshnessSeconds) * time.Second
}

func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.Polling.RefreshSeconds) * time.Second
}

func (c Config) SheetsTimeout() time.Duration {
	return time.Duration(c.Sheets.TimeoutSeconds) * time.Second
}
