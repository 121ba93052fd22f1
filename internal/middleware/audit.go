package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/huangang/auditdesk/backend/internal/services"
	"github.com/huangang/auditdesk/backend/pkg/logger"
)

const (
	// ContextAuditAction lets a handler name the recorded action explicitly.
	ContextAuditAction = "audit_action"
	// ContextAuditTarget lets a handler name the affected entity.
	ContextAuditTarget = "audit_target"

	maxAuditBody = 2000
)

var sensitiveKeys = map[string]struct{}{
	"password":     {},
	"api_key":      {},
	"apikey":       {},
	"secret":       {},
	"token":        {},
	"access_token": {},
}

// Recorder appends audit entries.
type Recorder interface {
	Record(ctx context.Context, in services.RecordInput) (*services.LogEntry, error)
}

// AuditLog records every write request (POST, PUT, DELETE) after the handler
// ran. Sensitive body fields are masked before they are stored.
func AuditLog(rec Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method != http.MethodPost && method != http.MethodPut && method != http.MethodDelete {
			c.Next()
			return
		}

		var body string
		if c.Request.Body != nil {
			raw, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(raw))
			body = maskBody(raw)
		}

		c.Next()

		status := c.Writer.Status()
		action := c.GetString(ContextAuditAction)
		if action == "" {
			action = actionFromRoute(c.FullPath(), method)
		}
		target := c.GetString(ContextAuditTarget)
		if target == "" {
			target = c.Request.URL.Path
		}

		performedBy := ""
		if id := GetUserID(c); id > 0 {
			performedBy = strconv.FormatUint(uint64(id), 10)
		}

		_, err := rec.Record(c.Request.Context(), services.RecordInput{
			Action:           action,
			TargetID:         target,
			PerformedBy:      performedBy,
			PerformedByEmail: GetEmail(c),
			IP:               c.ClientIP(),
			Details: map[string]interface{}{
				"method": method,
				"path":   c.Request.URL.Path,
				"status": status,
				"ok":     status >= 200 && status < 300,
				"body":   body,
			},
		})
		if err != nil {
			logger.Warn().Err(err).Str("action", action).Msg("failed to record audit log")
		}
	}
}

// actionFromRoute names an action after the route resource and verb, e.g.
// DELETE /api/audit-logs/older-than/:days becomes "audit_logs_delete".
func actionFromRoute(fullPath, method string) string {
	path := strings.TrimPrefix(fullPath, "/api/")
	resource := strings.SplitN(path, "/", 2)[0]
	if resource == "" {
		resource = "unknown"
	}
	resource = strings.ReplaceAll(resource, "-", "_")

	verb := strings.ToLower(method)
	switch method {
	case http.MethodPost:
		verb = "create"
	case http.MethodPut:
		verb = "update"
	case http.MethodDelete:
		verb = "delete"
	}
	return resource + "_" + verb
}

// maskBody trims the request body and hides sensitive values. Bodies that
// are not JSON are stored truncated but otherwise untouched.
func maskBody(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err == nil {
		maskValue(doc)
		if b, err := json.Marshal(doc); err == nil {
			raw = b
		}
	}

	if len(raw) <= maxAuditBody {
		return string(raw)
	}
	// cut on a rune boundary
	end := maxAuditBody
	for end > 0 && !utf8.RuneStart(raw[end]) {
		end--
	}
	return string(raw[:end]) + "...[truncated]"
}

func maskValue(v interface{}) {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, child := range t {
			if _, ok := sensitiveKeys[strings.ToLower(k)]; ok {
				t[k] = "***"
				continue
			}
			maskValue(child)
		}
	case []interface{}:
		for _, child := range t {
			maskValue(child)
		}
	}
}
