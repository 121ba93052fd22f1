package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/auditdesk/backend/internal/middleware"
	"github.com/huangang/auditdesk/backend/internal/services"
	"github.com/huangang/auditdesk/backend/pkg/logger"
	"github.com/huangang/auditdesk/backend/pkg/response"
)

var errEmptyFilter = errors.New("filter must set at least one of action, performedBy, startDate, endDate")

type AuditLogHandler struct {
	logs  *services.AuditLogService
	queue services.TaskQueue
}

func NewAuditLogHandler(logs *services.AuditLogService, queue services.TaskQueue) *AuditLogHandler {
	return &AuditLogHandler{logs: logs, queue: queue}
}

// List returns one cursor page of audit logs
// GET /api/audit-logs
func (h *AuditLogHandler) List(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	pageSize := 0
	if v := c.Query("page_size"); v != "" {
		pageSize, err = strconv.Atoi(v)
		if err != nil || pageSize < 1 {
			response.BadRequest(c, "page_size must be a positive integer")
			return
		}
	}

	page, err := h.logs.FetchPage(c.Request.Context(), pageSize, filter, c.Query("cursor"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, page)
}

// Count returns the number of logs matching the filter
// GET /api/audit-logs/count
func (h *AuditLogHandler) Count(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	n, err := h.logs.CountMatching(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"count": n})
}

// Actions lists the distinct actions seen in recent logs
// GET /api/audit-logs/actions
func (h *AuditLogHandler) Actions(c *gin.Context) {
	actions, err := h.logs.ListDistinctActions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"actions": actions})
}

// Export downloads matching logs as a JSON file
// GET /api/audit-logs/export
func (h *AuditLogHandler) Export(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	entries, err := h.logs.ExportMatching(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	name := fmt.Sprintf("audit-logs-%s.json", time.Now().Format(services.DateLayout))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.IndentedJSON(http.StatusOK, entries)
}

// DeleteAll removes every audit log
// DELETE /api/audit-logs
func (h *AuditLogHandler) DeleteAll(c *gin.Context) {
	c.Set(middleware.ContextAuditAction, "audit_logs_cleared")
	c.Set(middleware.ContextAuditTarget, services.DeleteModeAll)

	if h.enqueue(c, &services.PruneTask{Mode: services.DeleteModeAll, Reason: "api"}) {
		return
	}
	result, err := h.logs.DeleteAll(c.Request.Context())
	respondDeletion(c, result, err)
}

// DeleteOlderThan removes logs older than :days days
// DELETE /api/audit-logs/older-than/:days
func (h *AuditLogHandler) DeleteOlderThan(c *gin.Context) {
	c.Set(middleware.ContextAuditAction, "audit_logs_pruned")
	c.Set(middleware.ContextAuditTarget, c.Param("days"))

	days, err := strconv.Atoi(c.Param("days"))
	if err != nil || days < 1 {
		response.BadRequest(c, services.ErrInvalidRetention.Error())
		return
	}

	if h.enqueue(c, &services.PruneTask{Mode: services.DeleteModeOlder, Days: days, Reason: "api"}) {
		return
	}
	result, err := h.logs.DeleteOlderThan(c.Request.Context(), days)
	respondDeletion(c, result, err)
}

// DeleteMatching removes logs matching the filter in the body
// POST /api/audit-logs/delete
func (h *AuditLogHandler) DeleteMatching(c *gin.Context) {
	c.Set(middleware.ContextAuditAction, "audit_logs_deleted")
	c.Set(middleware.ContextAuditTarget, services.DeleteModeMatching)

	var filter services.LogsFilter
	if err := c.ShouldBindJSON(&filter); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if (filter.Action == "" || filter.Action == services.ActionAll) && filter.PerformedBy == "" && filter.StartDate == nil && filter.EndDate == nil {
		response.BadRequest(c, errEmptyFilter.Error())
		return
	}

	if h.enqueue(c, &services.PruneTask{Mode: services.DeleteModeMatching, Filter: &filter, Reason: "api"}) {
		return
	}
	result, err := h.logs.DeleteMatching(c.Request.Context(), &filter)
	respondDeletion(c, result, err)
}

// enqueue hands the deletion to the task queue when the caller asked for
// ?async=true. It reports whether the response has been written.
func (h *AuditLogHandler) enqueue(c *gin.Context, task *services.PruneTask) bool {
	if c.Query("async") != "true" || h.queue == nil {
		return false
	}
	if err := h.queue.Enqueue(task); err != nil {
		logger.Error().Err(err).Str("mode", task.Mode).Msg("failed to enqueue prune task")
		response.ServerError(c, "failed to enqueue deletion")
		return true
	}
	response.Accepted(c, gin.H{"mode": task.Mode, "async": h.queue.IsAsync()})
	return true
}

// respondDeletion answers 200 when at least part of the deletion went through
// and 500 when nothing could be deleted; both carry the result.
func respondDeletion(c *gin.Context, result *services.DeletionResult, err error) {
	if err != nil {
		if services.IsClientError(err) {
			response.BadRequest(c, err.Error())
			return
		}
		response.Fail(c, http.StatusInternalServerError, err.Error(), result)
		return
	}
	if !result.Success {
		response.Fail(c, http.StatusInternalServerError, result.Message, result)
		return
	}
	response.Success(c, result)
}

func respondError(c *gin.Context, err error) {
	if services.IsClientError(err) {
		response.Error(c, response.Wrap(http.StatusBadRequest, err))
		return
	}
	logger.Error().Err(err).Str("path", c.FullPath()).Msg("audit log request failed")
	response.ServerError(c, err.Error())
}

// filterFromQuery reads the list filter from query parameters.
func filterFromQuery(c *gin.Context) (*services.LogsFilter, error) {
	filter := &services.LogsFilter{
		Action:      c.Query("action"),
		PerformedBy: c.Query("performed_by"),
		SearchTerm:  c.Query("search"),
	}

	var err error
	if filter.StartDate, err = services.ParseDate(c.Query("start_date"), false); err != nil {
		return nil, fmt.Errorf("invalid start_date: %w", err)
	}
	if filter.EndDate, err = services.ParseDate(c.Query("end_date"), true); err != nil {
		return nil, fmt.Errorf("invalid end_date: %w", err)
	}
	return filter, nil
}
