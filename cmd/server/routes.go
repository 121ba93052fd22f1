package main

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/auditdesk/backend/internal/handlers"
	"github.com/huangang/auditdesk/backend/internal/middleware"
	"github.com/huangang/auditdesk/backend/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	r.Use(logger.GinLogger("/health", "/metrics"), logger.GinRecovery())
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	r.GET("/health", svc.healthHandler.CheckHealth)
	r.GET("/metrics", handlers.Metrics())

	api := r.Group("/api")
	{
		api.POST("/auth/login", svc.limiter.Middleware(), svc.authHandler.Login)

		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/auth/me", svc.authHandler.Me)
			protected.GET("/settings", svc.settingsHandler.Get)
		}

		// Admin writes are recorded to the audit log itself
		admin := api.Group("")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired(), middleware.AuditLog(svc.auditLogs))
		{
			admin.GET("/audit-logs", svc.auditLogHandler.List)
			admin.GET("/audit-logs/count", svc.auditLogHandler.Count)
			admin.GET("/audit-logs/actions", svc.auditLogHandler.Actions)
			admin.GET("/audit-logs/export", svc.auditLogHandler.Export)
			admin.DELETE("/audit-logs", svc.auditLogHandler.DeleteAll)
			admin.DELETE("/audit-logs/older-than/:days", svc.auditLogHandler.DeleteOlderThan)
			admin.POST("/audit-logs/delete", svc.auditLogHandler.DeleteMatching)

			admin.GET("/settings/retention", svc.settingsHandler.GetRetention)
			admin.PUT("/settings/retention", svc.settingsHandler.SetRetention)
			admin.POST("/settings/reload", svc.settingsHandler.Reload)
		}
	}
}
