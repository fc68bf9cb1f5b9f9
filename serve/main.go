// Command nextline serves one-line text suggestions over HTTP.
// It loads the configured model once at startup and falls back to a fixed
// placeholder suggestion when the model cannot be loaded.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	nextline "github.com/nextline-dev/nextline"
	"github.com/nextline-dev/nextline/generate"
	"github.com/nextline-dev/nextline/model"
)

// Version is set at build time via -ldflags.
var Version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, cfgErr := nextline.LoadConfig()
	if cfgErr != nil {
		cfg = nextline.DefaultConfig()
	}

	logger, closeLog := newLogger(os.Stderr, parseLevel(nextline.ResolveLogLevel(cfg)), nextline.ResolveLogFile(cfg))
	defer closeLog()
	slog.SetDefault(logger)

	if cfgErr != nil {
		slog.Warn("failed to load config, using defaults", "path", nextline.ConfigPath(), "error", cfgErr)
	}
	for _, w := range nextline.ValidateConfig(cfg) {
		slog.Warn("config", "warning", w)
	}

	addr, err := nextline.ListenAddr(cfg)
	if err != nil {
		slog.Error("invalid listen address", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting", "version", Version, "addr", addr)

	avail := model.Load(ctx, cfg)
	engine := generate.NewEngineFromConfig(avail, cfg)
	srv := NewServer(addr, engine)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	slog.Info("ready", "model_ready", avail.Ready())

	select {
	case err := <-errCh:
		engine.Close()
		if err != nil {
			slog.Error("server error", "error", err)
			closeLog()
			os.Exit(1)
		}
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}
}
