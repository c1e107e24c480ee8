package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"correlation_id": c.GetString(CorrelationIDKey)})
	})
	r.POST("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(SecurityHeaders()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-referrer", w.Header().Get("Referrer-Policy"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"), "HSTS only in release mode")
}

func TestCorrelationID(t *testing.T) {
	r := newRouter(CorrelationID())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	generated := w.Header().Get("X-Correlation-ID")
	_, err := uuid.Parse(generated)
	assert.NoError(t, err)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, generated, body["correlation_id"])

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Correlation-ID"))
}

func TestRequestTimeout(t *testing.T) {
	r := gin.New()
	r.Use(RequestTimeout(20 * time.Millisecond))
	r.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
	})
	r.GET("/fast", func(c *gin.Context) {
		_, hasDeadline := c.Request.Context().Deadline()
		c.JSON(http.StatusOK, gin.H{"deadline": hasDeadline})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fast", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deadline":true}`, w.Body.String())
}

func TestAuditLogger(t *testing.T) {
	var buf bytes.Buffer
	r := newRouter(CorrelationID(), AuditLogger(&buf))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Correlation-ID", "audit-1")
	req.Header.Set("User-Agent", `agent "quoted"`)
	r.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "audit-1", line["correlation_id"])
	assert.Equal(t, "/ping", line["path"])
	assert.Equal(t, float64(200), line["status"])
	assert.Equal(t, `agent "quoted"`, line["user_agent"])
}

func TestCORS(t *testing.T) {
	r := newRouter(CORS([]string{"http://localhost:3000/"}))

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{"allowed origin", http.MethodGet, "http://localhost:3000", http.StatusOK, "http://localhost:3000"},
		{"allowed preflight", http.MethodOptions, "http://localhost:3000", http.StatusNoContent, "http://localhost:3000"},
		{"foreign origin", http.MethodGet, "http://evil.example", http.StatusOK, ""},
		{"foreign preflight", http.MethodOptions, "http://evil.example", http.StatusForbidden, ""},
		{"same origin", http.MethodGet, "", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/ping", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantAllow, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORS_Wildcard(t *testing.T) {
	r := newRouter(CORS([]string{"*"}))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "https://anywhere.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiter_PerClient(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(1, 2)
	l.now = func() time.Time { return now }
	l.lastSweep = now

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"), "burst exhausted")
	assert.True(t, l.Allow("10.0.0.2"), "other clients have their own bucket")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("10.0.0.1"), "refilled after a second")

	now = now.Add(idleLimiterTTL + time.Minute)
	l.Allow("10.0.0.3")
	assert.Len(t, l.clients, 1, "idle clients are swept")
}

func TestRateLimiter_Middleware(t *testing.T) {
	r := newRouter(NewRateLimiter(0.5, 1).Middleware())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
}
