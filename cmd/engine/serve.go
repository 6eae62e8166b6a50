package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"leadboard-engine/internal/config"
	"leadboard-engine/internal/events"
	"leadboard-engine/internal/httpapi"
	"leadboard-engine/internal/poll"
)

const (
	// EnvShutdownToken lets a parent process choose the /shutdown token.
	EnvShutdownToken = "LEADBOARD_SHUTDOWN_TOKEN"
	tokenFile        = "engine.token"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background sheet refresh",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port on 127.0.0.1 (default app.port from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, resolveDataDir())
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.config()
	log := a.log

	hub := events.NewHub()
	syncer := poll.NewSyncer(a.repo, a.db.Pool, log.Named("sync"))
	wireEvents(a.repo, syncer, hub)

	mux := httpapi.NewMux(httpapi.Deps{
		Repo:        a.repo,
		Syncer:      syncer,
		DB:          a.db.Pool,
		Hub:         hub,
		Log:         log.Named("http"),
		CfgVal:      &a.cfgVal,
		UserCfgPath: a.cfgPath,
		LoadCfg: func() (config.Config, error) {
			cfg, _, err := loadConfig(a.cfgPath)
			return cfg, err
		},
	})

	token, err := shutdownToken()
	if err != nil {
		return err
	}
	tokenPath := filepath.Join(a.dataDir, tokenFile)
	if err := os.WriteFile(tokenPath, []byte(token), 0o600); err != nil {
		return fmt.Errorf("write shutdown token: %w", err)
	}
	defer os.Remove(tokenPath)

	port := cfg.App.Port
	if servePort > 0 {
		port = servePort
	}

	// Request contexts end on shutdown so open SSE streams return.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           httpapi.Handler(mux, log.Named("http"), cfg.App.AllowedOrigins...),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelBase)
	mux.Handle("/shutdown", shutdownHandler(token, srv, log))

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	log.Info("engine listening",
		zap.String("addr", "http://"+ln.Addr().String()),
		zap.String("data_dir", a.dataDir),
		zap.String("mode", cfg.Sync.Mode),
		zap.String("token_file", tokenPath),
	)

	pollDone := poll.StartPoller(ctx, syncer, cfg.RefreshInterval())
	if cfg.RefreshInterval() <= 0 {
		_ = syncer.RunAsync(ctx, poll.TriggerStartup)
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = srv.Shutdown(shCtx)
		cancel()
	case err = <-errc:
	}

	stop()
	<-pollDone
	syncer.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	log.Info("engine stopped", zap.Int64("dropped_events", hub.Dropped()))
	return err
}

func shutdownToken() (string, error) {
	if t := os.Getenv(EnvShutdownToken); t != "" {
		return t, nil
	}
	return randomToken(16)
}
