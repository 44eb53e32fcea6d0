package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func corsRouter(mw gin.HandlerFunc) *gin.Engine {
	router := setupTestRouter()
	router.Use(mw)
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	return router
}

func TestCORS_Headers(t *testing.T) {
	router := corsRouter(CORS())

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// credentials are allowed, so the origin is echoed instead of *
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Expected echoed origin, got '%s'", got)
	}
	if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("Expected Access-Control-Allow-Credentials 'true'")
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Methods"), "DELETE") {
		t.Errorf("Expected DELETE in allowed methods, got '%s'", w.Header().Get("Access-Control-Allow-Methods"))
	}
	if got := w.Header().Get("Access-Control-Max-Age"); got != "43200" {
		t.Errorf("Expected max age 43200, got '%s'", got)
	}
}

func TestCORS_PreflightRequest(t *testing.T) {
	router := corsRouter(CORS())

	req := httptest.NewRequest("OPTIONS", "/test", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", w.Code)
	}
}

func TestCORS_NoOrigin(t *testing.T) {
	router := corsRouter(CORS())

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("Expected no CORS headers without Origin")
	}
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestCORS_RestrictedOrigins(t *testing.T) {
	router := corsRouter(CORS("https://play.example.com"))

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"https://play.example.com", true},
		{"https://evil.example.com", false},
	}

	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Origin", tt.origin)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		got := w.Header().Get("Access-Control-Allow-Origin") != ""
		if got != tt.allowed {
			t.Errorf("Origin %s: expected allowed=%v, got %v", tt.origin, tt.allowed, got)
		}
	}
}

func TestCORS_WildcardWithoutCredentials(t *testing.T) {
	config := DefaultCORSConfig()
	config.AllowCredentials = false
	config.MaxAge = 0
	router := corsRouter(CORSWithConfig(config))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected '*', got '%s'", got)
	}
	if w.Header().Get("Access-Control-Max-Age") != "" {
		t.Error("Expected no max age header")
	}
}
