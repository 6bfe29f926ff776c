package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/marquee/internal/auth/http"
	"github.com/aussiebroadwan/marquee/internal/auth/service"
	"github.com/aussiebroadwan/marquee/internal/auth/store"
	"github.com/aussiebroadwan/marquee/pkg/cryptox"
	"github.com/aussiebroadwan/marquee/pkg/jwtx"
	"github.com/aussiebroadwan/marquee/pkg/slogx"
	"golang.org/x/sync/errgroup"
)

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg     Config
	version string
	logger  *slog.Logger

	// Core dependencies
	db     store.Store
	codec  *jwtx.Codec
	hasher *cryptox.PasswordHasher

	// Services
	sessionIssuer       *service.SessionIssuer
	accountService      *service.AccountService
	refreshRotator      *service.RefreshRotator
	accessGate          *service.AccessGate
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
// version is reported by /livez and in every log line.
func New(ctx context.Context, cfg Config, version string) (*Application, error) {
	app := &Application{
		cfg:     cfg,
		version: version,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: version,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initCrypto(); err != nil {
		return nil, err
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.db = db
	app.logger.Info("credential store ready", "driver", cfg.StoreDriver)

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Handler exposes the routed HTTP surface without starting a listener.
func (app *Application) Handler() http.Handler { return app.router }

// Run serves HTTP until ctx is cancelled or SIGINT/SIGTERM arrives, then
// shuts down gracefully.
func (app *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.housekeepingService.Start()
	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", app.version)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("shutdown requested")
		return app.shutdown()
	})

	return g.Wait()
}

// shutdown gracefully shuts down the application
func (app *Application) shutdown() error {
	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "err", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "err", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing credential store", "err", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initCrypto loads the pepper and signing secrets and builds the codec.
func (app *Application) initCrypto() error {
	pepper, created, err := cryptox.LoadOrCreatePepper(app.cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}
	if created {
		app.logger.Warn("generated a new password pepper", "path", app.cfg.PepperFile)
	}
	app.hasher = cryptox.NewPasswordHasher(pepper)

	accessSecret, refreshSecret, err := signingSecrets(app.cfg, app.logger)
	if err != nil {
		return err
	}

	app.codec, err = jwtx.NewCodec(jwtx.CodecConfig{
		AccessSecret:  accessSecret,
		RefreshSecret: refreshSecret,
		AccessTTL:     app.cfg.AccessTTL,
		RefreshTTL:    app.cfg.RefreshTTL,
		Issuer:        app.cfg.Issuer,
	})
	if err != nil {
		return fmt.Errorf("failed to build token codec: %w", err)
	}
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.sessionIssuer = &service.SessionIssuer{Codec: app.codec, Store: app.db}
	app.accountService = &service.AccountService{
		Store:  app.db,
		Hasher: app.hasher,
		Issuer: app.sessionIssuer,
	}
	app.refreshRotator = &service.RefreshRotator{
		Codec:  app.codec,
		Store:  app.db,
		Issuer: app.sessionIssuer,
	}
	app.accessGate = &service.AccessGate{Codec: app.codec, Store: app.db}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(httpapi.RouterConfig{
		BuildVersion:      app.version,
		RateLimits:        app.cfg.RateLimits,
		RefreshTTL:        app.cfg.RefreshTTL,
		ForceSecureCookie: app.cfg.CookieSecure,
	}, app.db, app.logger)

	router.AccountService = app.accountService
	router.RefreshRotator = app.refreshRotator
	router.AccessGate = app.accessGate
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
