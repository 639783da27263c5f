package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kirillkom/docassist/internal/config"
	"github.com/kirillkom/docassist/internal/core/ports"
	"github.com/kirillkom/docassist/internal/core/usecase"
	"github.com/kirillkom/docassist/internal/infrastructure/backend/httpapi"
	"github.com/kirillkom/docassist/internal/infrastructure/browser"
	"github.com/kirillkom/docassist/internal/infrastructure/events/nats"
	"github.com/kirillkom/docassist/internal/infrastructure/files"
	"github.com/kirillkom/docassist/internal/infrastructure/resilience"
	"github.com/kirillkom/docassist/internal/infrastructure/tokenstore/localfs"
	"github.com/kirillkom/docassist/internal/infrastructure/tokenstore/sqlstore"
	"github.com/kirillkom/docassist/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Session *usecase.SessionController
	Opener  *browser.Opener
	Metrics *metrics.ClientMetrics

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, notifier ports.Notifier) (*App, error) {
	app := &App{Config: cfg, Logger: logger}

	clientMetrics := metrics.NewClientMetrics("docassist")
	app.Metrics = clientMetrics

	tokens, err := app.openTokenStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	backendExecutor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:   cfg.BackendRetryMaxAttempts,
		BreakerEnabled:     cfg.BackendBreakerEnabled,
		BreakerOpenTimeout: cfg.BackendBreakerOpen,
	}, resilience.WithLogger(logger), resilience.WithStateObserver(clientMetrics.ObserveBreaker))
	backend := httpapi.New(httpapi.Options{
		BaseURL:           cfg.BackendURL,
		QueryPath:         cfg.BackendQueryPath,
		Timeout:           cfg.BackendTimeout,
		RequestsPerSecond: cfg.BackendRPS,
		Burst:             cfg.BackendBurst,
	}, backendExecutor)

	events := app.openEvents()

	app.Opener = browser.NewOpener(browser.WithTimeout(cfg.AuthWindowTimeout))
	app.Session = usecase.NewSessionController(usecase.SessionConfig{
		UserID:            cfg.UserID,
		MaxFileSize:       cfg.MaxFileSize,
		UploadConcurrency: cfg.UploadConcurrency,
		FallbackEnabled:   cfg.FallbackEnabled,
	}, usecase.SessionDeps{
		Backend:   backend,
		Tokens:    tokens,
		Opener:    app.Opener,
		Notifier:  notifier,
		Events:    events,
		Inspector: files.NewPDFInspector(),
		Metrics:   clientMetrics,
		Logger:    logger,
	})
	app.closeFns = append([]func(){app.Session.Close}, app.closeFns...)

	if err := app.Session.Restore(ctx); err != nil {
		logger.Warn("restore_token_failed", "error", err)
	}
	return app, nil
}

func (a *App) openTokenStore(ctx context.Context) (ports.TokenStore, error) {
	cfg := a.Config
	switch cfg.TokenStoreDriver {
	case config.TokenStoreFile:
		store, err := localfs.New(cfg.TokenStorePath)
		if err != nil {
			return nil, fmt.Errorf("init token store: %w", err)
		}
		return store, nil

	case config.TokenStoreSQLite, config.TokenStorePostgres:
		if cfg.TokenStoreDriver == config.TokenStoreSQLite {
			if err := os.MkdirAll(filepath.Dir(cfg.TokenStoreDSN), 0o755); err != nil {
				return nil, fmt.Errorf("create token store dir: %w", err)
			}
		}
		db, err := sqlstore.OpenDB(cfg.TokenStoreDriver, cfg.TokenStoreDSN)
		if err != nil {
			return nil, fmt.Errorf("open token store: %w", err)
		}
		a.closeFns = append(a.closeFns, func() { _ = db.Close() })

		store := sqlstore.New(db, cfg.TokenStoreDriver, cfg.UserID)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure token schema: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported token store driver %q", cfg.TokenStoreDriver)
	}
}

// openEvents connects the optional event publisher. Events are best effort,
// so a broker that is down only disables them.
func (a *App) openEvents() ports.EventPublisher {
	if a.Config.NATSURL == "" {
		return nil
	}
	publisher, err := nats.New(a.Config.NATSURL, nats.Options{
		SubjectPrefix:      a.Config.NATSSubjectPrefix,
		ClientName:         "docassist",
		UserID:             a.Config.UserID,
		Logger:             a.Logger,
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig(),
			resilience.WithLogger(a.Logger), resilience.WithStateObserver(a.Metrics.ObserveBreaker)),
	})
	if err != nil {
		a.Logger.Warn("event_publisher_disabled", "error", err)
		return nil
	}
	a.closeFns = append(a.closeFns, publisher.Close)
	return publisher
}

// Close shuts the session down before the stores and the broker connection
// it writes to.
func (a *App) Close() {
	for _, fn := range a.closeFns {
		fn()
	}
	a.closeFns = nil
}
