package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/auditdesk/backend/internal/logstore"
	"github.com/huangang/auditdesk/backend/internal/services"
	"gorm.io/gorm"
)

const healthTimeout = 2 * time.Second

// HealthHandler reports database, audit store and queue status.
type HealthHandler struct {
	db    *gorm.DB
	store logstore.Store
	queue services.TaskQueue
}

func NewHealthHandler(db *gorm.DB, store logstore.Store, queue services.TaskQueue) *HealthHandler {
	return &HealthHandler{db: db, store: store, queue: queue}
}

// CheckHealth answers 503 when a backing store is unreachable
// GET /health
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	overall := "healthy"

	dbStatus := "ok"
	if sqlDB, err := h.db.DB(); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	}

	storeStatus := "ok"
	if err := h.store.Ping(ctx); err != nil {
		storeStatus = "error: " + err.Error()
		overall = "unhealthy"
	}

	queueMode := "sync"
	if h.queue != nil && h.queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	status := http.StatusOK
	if overall != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":  overall,
		"service": "auditdesk",
		"components": gin.H{
			"database":    dbStatus,
			"audit_store": storeStatus,
			"queue_mode":  queueMode,
		},
	})
}
