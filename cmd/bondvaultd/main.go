package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"bondvault/config"
	"bondvault/core/events"
	coretypes "bondvault/core/types"
	"bondvault/native/auth"
	"bondvault/native/token"
	"bondvault/native/vault"
	"bondvault/observability/logging"
	"bondvault/rpc"
	"bondvault/state"
	"bondvault/storage"
)

const shutdownGrace = 5 * time.Second

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config.toml", "path to bondvaultd config")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var logOut io.Writer
	if cfg.Log.File != "" {
		logOut = &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   true,
		}
	}
	logger := logging.Setup("bondvaultd", cfg.Environment, logOut)

	deployment, err := cfg.DeploymentAddress()
	if err != nil {
		log.Fatalf("deployment address: %v", err)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		log.Fatalf("open ledger at %s: %v", cfg.DataDir, err)
	}
	defer db.Close()

	manager := state.NewManager(db)

	domain, err := auth.NewDomain("bondvault", "1", cfg.ChainID, deployment)
	if err != nil {
		log.Fatalf("signing domain: %v", err)
	}
	authority := auth.NewAuthority(domain)
	authority.SetState(manager)

	ledger := token.NewLedger(deployment)
	ledger.SetState(manager)

	engine := vault.NewEngine(authority, ledger, ledger, ledger)
	engine.SetState(manager)
	engine.SetEmitter(&logEmitter{logger: logger})

	approvals := auth.NewApprovals(authority, ledger)

	srv := rpc.NewServer(engine, approvals, ledger, logger, rpc.Config{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("bondvaultd listening", "address", cfg.ListenAddress)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("forcing server stop", "error", err)
			_ = httpServer.Close()
		}
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve http: %v", err)
		}
	}
}

// logEmitter mirrors protocol events into the structured log so operators can
// trail vault activity without an indexer.
type logEmitter struct {
	logger *slog.Logger
}

func (e *logEmitter) Emit(event events.Event) {
	if event == nil {
		return
	}
	attrs := []any{"event", event.EventType()}
	if carrier, ok := event.(interface{ Event() *coretypes.Event }); ok {
		if evt := carrier.Event(); evt != nil {
			for key, value := range evt.Attributes {
				attrs = append(attrs, key, value)
			}
		}
	}
	e.logger.Info("protocol event", attrs...)
}
