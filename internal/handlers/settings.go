package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/auditdesk/backend/internal/middleware"
	"github.com/huangang/auditdesk/backend/internal/models"
	"github.com/huangang/auditdesk/backend/internal/services"
	"github.com/huangang/auditdesk/backend/pkg/logger"
	"github.com/huangang/auditdesk/backend/pkg/response"
)

type SettingsHandler struct {
	settings *services.SettingsService
}

func NewSettingsHandler(settings *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// Get returns the current settings snapshot
// GET /api/settings
func (h *SettingsHandler) Get(c *gin.Context) {
	response.Success(c, h.settings.Current())
}

// GetRetention returns the retention period in days; 0 means disabled
// GET /api/settings/retention
func (h *SettingsHandler) GetRetention(c *gin.Context) {
	response.Success(c, gin.H{"days": h.settings.Current().LogRetentionDays})
}

type retentionRequest struct {
	Days *int `json:"days" binding:"required"`
}

// SetRetention updates the retention period
// PUT /api/settings/retention
func (h *SettingsHandler) SetRetention(c *gin.Context) {
	c.Set(middleware.ContextAuditAction, "retention_updated")
	c.Set(middleware.ContextAuditTarget, models.ConfigKeyLogRetentionDays)

	var req retentionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	current, err := h.settings.SetRetentionDays(c.Request.Context(), *req.Days)
	if err != nil {
		if services.IsClientError(err) {
			response.BadRequest(c, "days must not be negative")
			return
		}
		logger.Error().Err(err).Msg("failed to save retention")
		response.ServerError(c, "failed to save retention")
		return
	}
	response.Success(c, gin.H{"days": current.LogRetentionDays})
}

// Reload re-reads settings from the database
// POST /api/settings/reload
func (h *SettingsHandler) Reload(c *gin.Context) {
	c.Set(middleware.ContextAuditAction, "settings_reloaded")

	current, err := h.settings.Reload(c.Request.Context())
	if err != nil {
		logger.Error().Err(err).Msg("failed to reload settings")
		response.ServerError(c, "failed to reload settings")
		return
	}
	response.Success(c, current)
}
