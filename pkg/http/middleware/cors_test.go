package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func serveCORS(cfg CORSConfig, method, origin string) *httptest.ResponseRecorder {
	e := echo.New()
	e.Use(CORS(cfg))
	e.GET("/api/snapshot", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.OPTIONS("/api/snapshot", func(c echo.Context) error { return c.NoContent(http.StatusMethodNotAllowed) })
	req := httptest.NewRequest(method, "/api/snapshot", nil)
	if origin != "" {
		req.Header.Set(echo.HeaderOrigin, origin)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCORSPreflight(t *testing.T) {
	cfg := CORSConfig{AllowMethods: []string{http.MethodGet}, MaxAge: time.Minute}
	rec := serveCORS(cfg, http.MethodOptions, "https://app.example")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status=%d", rec.Code)
	}
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "https://app.example" {
		t.Fatalf("allow-origin=%q", got)
	}
	if got := rec.Header().Get(echo.HeaderAccessControlMaxAge); got != "60" {
		t.Fatalf("max-age=%q", got)
	}
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	cfg := CORSConfig{AllowOrigins: []string{"https://app.example"}}
	rec := serveCORS(cfg, http.MethodGet, "https://evil.example")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "" {
		t.Fatalf("allow-origin=%q want empty", got)
	}
}
