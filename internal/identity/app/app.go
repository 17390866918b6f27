package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/artintel/identity/internal/identity/email"
	httpapi "github.com/artintel/identity/internal/identity/http"
	"github.com/artintel/identity/internal/identity/obs"
	"github.com/artintel/identity/internal/identity/ratelimit"
	"github.com/artintel/identity/internal/identity/service"
	"github.com/artintel/identity/internal/identity/store"
	"github.com/artintel/identity/internal/identity/store/drivers/sqlite"
	"github.com/artintel/identity/pkg/cryptox"
	"github.com/artintel/identity/pkg/jwtx"
	"github.com/artintel/identity/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application encapsulates the identity service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db      store.Store
	tokens  *jwtx.HS256
	limiter *ratelimit.Limiter

	authService         *service.AuthService
	userService         *service.UserService
	teamService         *service.TeamService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "identity",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(cfg.PepperFile)

	tokens, err := jwtx.NewHS256(cfg.JWTSecret, cfg.Issuer, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token signer: %w", err)
	}
	app.tokens = tokens

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	obs.Init()
	app.initServices()
	app.initHTTP()

	return app, nil
}

func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(app.cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	app.db = db
	return nil
}

func (app *Application) initServices() {
	app.limiter = ratelimit.New()

	var sender email.Sender
	if app.cfg.EmailDriver == "smtp" {
		sender = email.NewSMTPSender(email.Config{
			Host:        app.cfg.SMTPHost,
			Port:        app.cfg.SMTPPort,
			Username:    app.cfg.SMTPUsername,
			Password:    app.cfg.SMTPPassword,
			From:        app.cfg.EmailFrom,
			FrontendURL: app.cfg.FrontendURL,
		})
	} else {
		sender = &email.LogSender{Log: app.logger}
	}

	app.authService = &service.AuthService{
		Store:                app.db,
		Sender:               sender,
		Limiter:              app.limiter,
		Signer:               app.tokens,
		Issuer:               app.cfg.Issuer,
		TokenTTL:             app.cfg.TokenTTL,
		Limits:               app.cfg.Limits,
		AdminRegistrationKey: app.cfg.AdminRegistrationKey,
		AllowedAdminDomains:  app.cfg.AllowedAdminDomains,
	}
	app.userService = &service.UserService{Store: app.db}
	app.teamService = &service.TeamService{Store: app.db}
	app.housekeepingService = service.NewHousekeepingService(
		app.db, app.limiter, app.logger, app.cfg.HousekeepingInterval)
}

func (app *Application) initHTTP() {
	app.router = httpapi.NewRouter(app.tokens, BuildVersion, app.db, app.logger)
	app.router.AuthService = app.authService
	app.router.UserService = app.userService
	app.router.TeamService = app.teamService
	app.router.ApplyRoutes()

	app.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.cfg.Port),
		Handler: app.router,
	}
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("identity service starting", "port", app.cfg.Port, "version", BuildVersion)

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
	app.logger.Info("shutting down identity service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
	}

	app.logger.Info("identity service stopped")
	return nil
}
