package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/forecourtlabs/pos_backend/utils"
	"github.com/gin-gonic/gin"
)

func TestCorrelationMiddleware_GeneratesId(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CorrelationMiddleware())

	var seen string
	r.GET("/", func(c *gin.Context) {
		seen, _ = utils.GetCorrelationIdFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Fatal("no correlation id in request context")
	}
	if w.Header().Get("x-correlation-id") != seen {
		t.Fatal("response header does not echo the correlation id")
	}
}

func TestCorrelationMiddleware_HonorsInbound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CorrelationMiddleware())

	var seen string
	r.GET("/", func(c *gin.Context) {
		seen, _ = utils.GetCorrelationIdFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("x-correlation-id", "agent-retry-7")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "agent-retry-7" {
		t.Fatalf("correlation id = %q, want agent-retry-7", seen)
	}
}
