package logger

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func newRouter(buf *bytes.Buffer, skip ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	SetOutput(buf, zerolog.DebugLevel)
	r := gin.New()
	r.Use(GinRecovery(), GinLogger(skip...))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { panic("boom") })
	return r
}

func TestGinLogger_SkipsHealthyProbes(t *testing.T) {
	var buf bytes.Buffer
	r := newRouter(&buf, "/health")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if buf.Len() != 0 {
		t.Errorf("skipped path should not be logged, got %q", buf.String())
	}
}

func TestGinLogger_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	r := newRouter(&buf)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health?x=1", nil))
	out := buf.String()
	if !strings.Contains(out, `"path":"/health"`) || !strings.Contains(out, `"query":"x=1"`) {
		t.Errorf("request line missing fields: %q", out)
	}
}

func TestGinRecovery(t *testing.T) {
	var buf bytes.Buffer
	r := newRouter(&buf)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Errorf("panic should be logged, got %q", buf.String())
	}
}
