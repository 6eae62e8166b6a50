package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"leadboard-engine/internal/config"
	"leadboard-engine/internal/ingest/sheets"
	"leadboard-engine/internal/logging"
	"leadboard-engine/internal/repo"
	"leadboard-engine/internal/secrets"
	"leadboard-engine/internal/store"
)

const (
	dbFile   = "leadboard.db"
	lockFile = "engine.lock"
)

// app is everything a command needs once the data dir is open.
type app struct {
	dataDir string
	cfgPath string
	cfgVal  atomic.Value // stores config.Config
	log     *zap.Logger
	db      *store.DB
	repo    *repo.Repository

	closers []func() error
}

// openApp loads the config, takes the data dir lock and opens the database,
// snapshot store and sheet client. Only one process may hold a data dir.
func openApp(ctx context.Context, dataDir string) (*app, error) {
	cfgPath, err := config.EnsureUserConfig(dataDir)
	if err != nil {
		return nil, fmt.Errorf("config bootstrap: %w", err)
	}
	cfg, v, err := loadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		return nil, err
	}
	for _, w := range v.Warnings {
		log.Warn("config warning", zap.String("path", cfgPath), zap.String("warning", w))
	}

	a := &app{dataDir: dataDir, cfgPath: cfgPath, log: log}
	a.cfgVal.Store(cfg)
	fail := func(err error) (*app, error) {
		_ = a.Close()
		return nil, err
	}

	lock := flock.New(filepath.Join(dataDir, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return fail(fmt.Errorf("lock data dir: %w", err))
	}
	if !locked {
		return fail(fmt.Errorf("data dir %s is in use by another engine process", dataDir))
	}
	a.closers = append(a.closers, lock.Unlock)

	db, err := store.Open(filepath.Join(dataDir, dbFile))
	if err != nil {
		return fail(err)
	}
	a.db = db
	a.closers = append(a.closers, db.Close)
	if err := store.Migrate(db.Pool); err != nil {
		return fail(fmt.Errorf("migrate: %w", err))
	}

	snaps, closeSnaps, err := store.NewSnapshotStore(ctx, cfg, db)
	if err != nil && cfg.Cache.Backend == config.BackendRedis {
		log.Warn("redis unavailable, keeping snapshots in sqlite", zap.String("addr", cfg.Cache.RedisAddr), zap.Error(err))
		local := cfg
		local.Cache.Backend = config.BackendSQLite
		snaps, closeSnaps, err = store.NewSnapshotStore(ctx, local, db)
	}
	if err != nil {
		return fail(fmt.Errorf("snapshot store: %w", err))
	}
	a.closers = append(a.closers, closeSnaps)

	src, err := openSheet(ctx, cfg, log)
	if err != nil {
		return fail(err)
	}
	a.repo = repo.New(src, snaps, repo.OptionsFrom(cfg), log.Named("repo"))
	return a, nil
}

// loadConfig reads path over the defaults and normalizes it. Validation
// errors are fatal; warnings are returned for logging.
func loadConfig(path string) (config.Config, config.Validation, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, config.Validation{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	cfg, v := config.NormalizeAndValidate(cfg)
	if !v.OK() {
		return cfg, v, fmt.Errorf("invalid config (%s): %v", path, v.Errors)
	}
	return cfg, v, nil
}

// openSheet returns the sheet client, or a nil Source when the spreadsheet
// or its credentials are not configured yet.
func openSheet(ctx context.Context, cfg config.Config, log *zap.Logger) (repo.Source, error) {
	if cfg.Sheets.SpreadsheetID == "" {
		log.Warn("no spreadsheet configured, serving snapshot or sample leads")
		return nil, nil
	}
	creds, err := secrets.GetOAuth(cfg.OAuth.KeyringAccount)
	if errors.Is(err, secrets.ErrNoCredentials) {
		log.Warn("no oauth credentials, serving snapshot or sample leads",
			zap.String("keyring_account", cfg.OAuth.KeyringAccount))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	client, err := sheets.New(ctx, sheets.ConfigFrom(cfg), sheets.Credentials{
		ClientSecret: creds.ClientSecret,
		RefreshToken: creds.RefreshToken,
	}, log.Named("sheets"))
	if errors.Is(err, sheets.ErrNoCredentials) {
		log.Warn("oauth client id missing, serving snapshot or sample leads")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (a *app) config() config.Config {
	return a.cfgVal.Load().(config.Config)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	_ = a.log.Sync()
	return errors.Join(errs...)
}
