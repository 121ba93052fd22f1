package main

import (
	"context"
	"fmt"

	"github.com/huangang/auditdesk/backend/internal/config"
	"github.com/huangang/auditdesk/backend/internal/handlers"
	"github.com/huangang/auditdesk/backend/internal/logstore"
	"github.com/huangang/auditdesk/backend/internal/middleware"
	"github.com/huangang/auditdesk/backend/internal/models"
	"github.com/huangang/auditdesk/backend/internal/services"
	"github.com/huangang/auditdesk/backend/internal/utils"
	"github.com/huangang/auditdesk/backend/pkg/logger"
	"gorm.io/gorm"
)

// appServices holds everything the routes and shutdown need.
type appServices struct {
	db        *gorm.DB
	store     logstore.Store
	auditLogs *services.AuditLogService
	settings  *services.SettingsService
	taskQueue services.TaskQueue
	worker    *services.Worker
	retention *services.RetentionScheduler
	limiter   *middleware.RateLimiter

	authHandler     *handlers.AuthHandler
	auditLogHandler *handlers.AuditLogHandler
	settingsHandler *handlers.SettingsHandler
	healthHandler   *handlers.HealthHandler
}

// bootstrap opens the databases, wires the services and starts the
// background workers.
func bootstrap(ctx context.Context, cfg *config.Config) (*appServices, error) {
	utils.SetJWTSecret(cfg.JWT.Secret)

	db, err := models.Open(&cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := models.SeedDefaultData(db); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}

	store, err := logstore.New(ctx, &cfg.AuditStore, db)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit store: %w", err)
	}
	logger.Info().Str("driver", cfg.AuditStore.Driver).Msg("Audit store ready")

	auditLogs := services.NewAuditLogService(store, cfg.Audit)

	settings := services.NewSettingsService(db)
	if _, err := settings.Reload(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to load settings, using defaults")
	}

	taskQueue := services.NewTaskQueue(&cfg.Redis)
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(auditLogs.RunPrune)
	}

	var worker *services.Worker
	if taskQueue.IsAsync() {
		worker = services.NewWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(auditLogs.RunPrune)
			worker.Start()
		}
	}

	retention := services.NewRetentionScheduler(db, settings, taskQueue, cfg.Audit.RetentionCron)
	if err := retention.Start(); err != nil {
		return nil, err
	}

	authService := services.NewAuthService(db, &cfg.JWT)
	if created, err := authService.CreateAdminIfNotExists(&cfg.Admin); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	} else if created {
		logger.Info().Str("username", cfg.Admin.Username).Msg("Default admin user created")
	}

	return &appServices{
		db:        db,
		store:     store,
		auditLogs: auditLogs,
		settings:  settings,
		taskQueue: taskQueue,
		worker:    worker,
		retention: retention,
		limiter:   middleware.NewRateLimiter(5, 10),

		authHandler:     handlers.NewAuthHandler(authService),
		auditLogHandler: handlers.NewAuditLogHandler(auditLogs, taskQueue),
		settingsHandler: handlers.NewSettingsHandler(settings),
		healthHandler:   handlers.NewHealthHandler(db, store, taskQueue),
	}, nil
}

// shutdown stops the schedulers first so no new prune is enqueued, then
// drains the queue and closes the stores.
func (s *appServices) shutdown(ctx context.Context) {
	s.retention.Stop()
	s.limiter.Stop()

	if s.worker != nil {
		s.worker.Stop()
	}
	if err := s.taskQueue.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close task queue")
	}
	if err := s.store.Close(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to close audit store")
	}
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info().Msg("Shutdown complete")
}
