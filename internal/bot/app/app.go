package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aussiebroadwan/graphbot/internal/bot/service"
	"github.com/aussiebroadwan/graphbot/internal/bot/store"
	"github.com/aussiebroadwan/graphbot/internal/bot/store/drivers/sqlite"
	"github.com/aussiebroadwan/graphbot/internal/bot/telegram"
	"github.com/aussiebroadwan/graphbot/pkg/graphsdk"
	"github.com/aussiebroadwan/graphbot/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

var ErrNoAdminSecret = errors.New("BOT_ADMIN_SECRET must be set")

// Application encapsulates the bot with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db store.Store

	// Services
	bindingService      *service.BindingService
	permissionService   *service.PermissionService
	housekeepingService *service.HousekeepingService

	// Event routing
	router  *telegram.Router
	updates chan telegram.Update
}

// New creates an Application with all dependencies initialized. The default
// transport logs outgoing replies; attach a real one with SetSender before
// Run.
func New(cfg Config) (*Application, error) {
	if cfg.AdminSecret == "" {
		return nil, ErrNoAdminSecret
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "graphbot",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		updates: make(chan telegram.Update, 64),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.router = telegram.NewRouter(
		app.bindingService,
		app.permissionService,
		app.db,
		&telegram.LogSender{Logger: app.logger},
		telegram.NopInvoker{},
	)
	app.router.PendingTTL = cfg.PendingTTL

	return app, nil
}

// SetSender attaches a real outbound transport. Call before Run.
func (app *Application) SetSender(s telegram.Sender) {
	app.router.Sender = s
}

// SetTaskInvoker attaches a real API task runner. Call before Run.
func (app *Application) SetTaskInvoker(t telegram.TaskInvoker) {
	app.router.Tasks = t
}

// Updates is the inbound event feed. The transport layer decodes wire events
// into telegram.Update values and pushes them here.
func (app *Application) Updates() chan<- telegram.Update {
	return app.updates
}

// Run processes inbound updates until a shutdown signal arrives. Events are
// handled on a bounded worker pool so one chat's slow directory call never
// stalls another chat.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("graphbot starting", "version", BuildVersion, "workers", app.cfg.WorkerLimit)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = slogx.WithContext(ctx, app.logger)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	sem := make(chan struct{}, app.workerLimit())

loop:
	for {
		select {
		case sig := <-shutdown:
			app.logger.Info("shutdown signal received", "signal", sig)
			break loop
		case u := <-app.updates:
			sem <- struct{}{}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				app.router.HandleUpdate(ctx, u)
			}()
		}
	}

	// Let in-flight events finish, bounded by the grace period.
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(app.cfg.ShutdownGracePeriod):
		app.logger.Warn("shutdown grace period elapsed with events still in flight")
	}

	return app.Shutdown()
}

// Shutdown stops background services and closes the database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down graphbot...")

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("graphbot stopped")
	return nil
}

func (app *Application) workerLimit() int {
	if app.cfg.WorkerLimit <= 0 {
		return 16
	}
	return app.cfg.WorkerLimit
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
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

// initServices initializes all business logic services
func (app *Application) initServices() error {
	secrets, err := service.NewStaticSecretProvider(app.cfg.AdminSecret)
	if err != nil {
		return fmt.Errorf("failed to hash admin secret: %w", err)
	}

	app.bindingService = &service.BindingService{
		Store:          app.db,
		Directory:      graphsdk.NewClient(app.cfg.GraphTimeout),
		Scope:          app.cfg.OAuthScope,
		RedirectURL:    app.cfg.RedirectURL,
		AppPortalURL:   app.cfg.AppPortalURL,
		ValidateTokens: app.cfg.ValidateTokens,
	}

	app.permissionService = &service.PermissionService{
		Store:   app.db,
		Secrets: secrets,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)

	return nil
}
