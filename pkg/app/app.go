// Package app wires configuration into a ready gin engine.
package app

import (
	"github.com/arnavshah/limits-settings-go/pkg/auth"
	"github.com/arnavshah/limits-settings-go/pkg/config"
	"github.com/arnavshah/limits-settings-go/pkg/database"
	"github.com/arnavshah/limits-settings-go/pkg/editor"
	"github.com/arnavshah/limits-settings-go/pkg/handlers"
	"github.com/arnavshah/limits-settings-go/pkg/scheduler"
	"github.com/arnavshah/limits-settings-go/pkg/settings"
	"github.com/arnavshah/limits-settings-go/pkg/validation"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// App is the assembled service
type App struct {
	Router *gin.Engine
	Editor *editor.Editor

	closers []func() error
}

// Close releases the database and cache connections
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// New opens the stores, picks the schedule validator and registers the routes
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{}

	db, err := database.InitDB(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}

	am := auth.NewManager(cfg.Auth)
	if err := am.EnsureAdminExists(db, cfg.Admin, logger); err != nil {
		_ = a.Close()
		return nil, err
	}

	var store settings.Store = settings.NewGormStore(db)
	if cfg.Redis.Addr != "" {
		cache, err := settings.NewRedisCache(cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, settings cache disabled", zap.Error(err))
		} else {
			a.closers = append(a.closers, cache.Close)
			store = settings.NewCachedStore(store, cache, cfg.Redis.TTL, logger)
			logger.Info("settings cache enabled", zap.String("addr", cfg.Redis.Addr))
		}
	}

	var validator validation.Validator
	if cfg.Validator.URL != "" {
		validator = validation.NewHTTPValidator(cfg.Validator.URL, cfg.Validator.Timeout)
		logger.Info("using remote schedule validator", zap.String("url", cfg.Validator.URL))
	} else {
		validator = scheduler.NewChecker(settings.NewGormSchedules(db))
	}
	if cfg.Editor.ScheduleID == "" {
		logger.Warn("editor.schedule_id is empty, daily limits are saved without validation")
	}

	inbox := editor.NewInbox(100)
	ed := editor.New(
		store,
		settings.NewGormRoster(db),
		validation.NewGate(validator, logger),
		editor.Fanout{inbox, editor.NewLogNotifier(logger)},
		logger,
		editor.Options{
			ScheduleID:      cfg.Editor.ScheduleID,
			ValidateCreates: cfg.Editor.ValidateCreates,
		},
	)

	if cfg.Server.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(handlers.RequestID(), handlers.Logger(logger), gin.Recovery())

	h := &handlers.Handler{DB: db, Auth: am, Editor: ed, Inbox: inbox, Logger: logger}
	h.Routes(r)

	a.Router = r
	a.Editor = ed
	return a, nil
}
