// config/overlay.go
package config

import (
	"os"
	"strings"
)

// Environment overrides. Secrets are not read here; see internal/secrets.
const (
	EnvDataDir       = "LEADBOARD_DATA_DIR"
	EnvSpreadsheetID = "LEADBOARD_SPREADSHEET_ID"
	EnvClientID      = "LEADBOARD_CLIENT_ID"
	EnvRedisAddr     = "LEADBOARD_REDIS_ADDR"
)

func ApplyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.App.DataDir, EnvDataDir)
	set(&cfg.Sheets.SpreadsheetID, EnvSpreadsheetID)
	set(&cfg.OAuth.ClientID, EnvClientID)
	set(&cfg.Cache.RedisAddr, EnvRedisAddr)
}
