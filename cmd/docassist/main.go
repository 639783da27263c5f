package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/docassist/internal/adapters/cli"
	httpadapter "github.com/kirillkom/docassist/internal/adapters/http"
	"github.com/kirillkom/docassist/internal/bootstrap"
	"github.com/kirillkom/docassist/internal/config"
	"github.com/kirillkom/docassist/internal/core/ports"
	"github.com/kirillkom/docassist/internal/infrastructure/files"
	"github.com/kirillkom/docassist/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLogger("docassist", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	renderer := cli.NewRenderer(os.Stdout)
	app, err := bootstrap.New(ctx, cfg, logger, cli.NewNotifier(renderer))
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	router := httpadapter.NewRouter(httpadapter.Deps{
		Tokens:         app.Session,
		Metrics:        app.Metrics.Handler(),
		AllowedOrigins: cfg.AuthAllowedOrigins,
		RateLimitRPS:   cfg.CallbackRateLimit,
		RateLimitBurst: 10,
	}).Handler()
	server := &http.Server{
		Handler:      app.Metrics.Middleware(router),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Without the listener tokens can still arrive through the token store.
	listener, err := net.Listen("tcp", cfg.CallbackAddr)
	if err != nil {
		logger.Warn("callback_listener_unavailable", "addr", cfg.CallbackAddr, "error", err)
	} else {
		go func() {
			logger.Info("callback_listening", "addr", listener.Addr().String())
			if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("callback_server_error", "error", err)
			}
		}()
	}

	repl := cli.NewREPL(cli.Deps{
		Session:   app.Session,
		Renderer:  renderer,
		Intake:    intake,
		ExportDir: cfg.ExportDir,
		Demo:      cfg.DemoMode,
		Logger:    logger,
	})
	if err := repl.Run(ctx, os.Stdin); err != nil {
		logger.Error("repl_error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("callback_shutdown_error", "error", err)
	}
}

func intake(patterns []string) ([]ports.UploadFile, error) {
	paths, err := files.Expand(patterns)
	if err != nil {
		return nil, err
	}
	return files.OpenAll(paths)
}
