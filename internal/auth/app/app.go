package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sanasol-ws/dualauth/internal/auth/federation"
	httpapi "github.com/sanasol-ws/dualauth/internal/auth/http"
	"github.com/sanasol-ws/dualauth/internal/auth/issuer"
	"github.com/sanasol-ws/dualauth/internal/auth/selfsign"
	"github.com/sanasol-ws/dualauth/internal/auth/service"
	"github.com/sanasol-ws/dualauth/internal/auth/store"
	"github.com/sanasol-ws/dualauth/internal/auth/store/drivers/sqlite"
	"github.com/sanasol-ws/dualauth/internal/metrics"
	"github.com/sanasol-ws/dualauth/pkg/jwtx"
	"github.com/sanasol-ws/dualauth/pkg/slogx"
)

const (
	// BuildVersion is the version reported in startup logs and health
	// responses. It is a constant, so -ldflags -X cannot override it.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the session service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db         store.Store
	keys       *jwtx.KeyStore
	resolver   *issuer.Resolver
	federation *federation.Federation
	recorder   *metrics.Recorder

	sessionService      *service.SessionService
	exchangeService     *service.ExchangeService
	profileService      *service.ProfileService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "dualauth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	keys, err := InitSigningKey(cfg, app.logger)
	if err != nil {
		return nil, err
	}
	app.keys = keys

	app.resolver = issuer.NewResolver(cfg.BaseDomain, cfg.LocalHosts, cfg.OfficialIssuers)
	app.federation = federation.New(app.resolver, app.keys, federation.Config{
		CacheTTL:     cfg.ForeignKeyTTL,
		NegativeTTL:  cfg.NegativeCacheTTL,
		FetchTimeout: cfg.JWKSFetchTimeout,
	}, nil, app.logger)

	app.recorder = metrics.NewRecorder(1024, app.logger)

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.recorder.Start()
	app.housekeepingService.Start()

	app.logger.Info("session service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"issuer", app.resolver.DefaultIssuer(),
		"accept_self_signed", app.cfg.AcceptSelfSigned,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down session service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()
	app.recorder.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("session service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initServices() {
	app.sessionService = &service.SessionService{
		Keys:       app.keys,
		Resolver:   app.resolver,
		Store:      app.db,
		SessionTTL: app.cfg.SessionTTL,
		Recorder:   app.recorder,
	}

	app.exchangeService = &service.ExchangeService{
		Keys:     app.keys,
		Resolver: app.resolver,
		Store:    app.db,
		Bypass: &selfsign.Minter{
			Keys:     app.keys,
			TTL:      app.cfg.SessionTTL,
			Recorder: app.recorder,
		},
		AcceptSelfSigned: app.cfg.AcceptSelfSigned,
		GrantTTL:         app.cfg.SessionTTL,
		AccessTTL:        app.cfg.SessionTTL,
		Recorder:         app.recorder,
	}

	app.profileService = &service.ProfileService{
		Federation: app.federation,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keys,
		app.resolver,
		app.federation,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.SessionService = app.sessionService
	router.ExchangeService = app.exchangeService
	router.ProfileService = app.profileService
	router.IncludeForeignJWKS = app.cfg.IncludeForeignJWKS
	router.LegacyCatchAll = app.cfg.LegacyCatchAll
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
