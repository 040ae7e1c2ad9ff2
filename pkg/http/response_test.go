package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func render(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	if werr := AppErrorResponse(c, err); werr != nil {
		t.Fatalf("write: %v", werr)
	}
	return rec
}

func TestAppErrorResponseRetryAfter(t *testing.T) {
	rec := render(t, TooManyRequestsError("slow down").WithRetryAfter(1500*time.Millisecond))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("Retry-After = %q, want 2", got)
	}
	var body struct {
		Status int        `json:"status"`
		Data   []AppError `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != http.StatusTooManyRequests || len(body.Data) != 1 || body.Data[0].Code != "ERR_RATE_LIMITED" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestAppErrorResponseHidesCause(t *testing.T) {
	rec := render(t, ServiceUnavailableError("", "down").WithError(errors.New("dial tcp 10.0.0.3:5432")))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "10.0.0.3") {
		t.Fatalf("cause leaked: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "ERR_SERVICE_UNAVAILABLE") {
		t.Fatalf("missing default code: %s", rec.Body.String())
	}
}

func TestAppErrorResponsePlainErrorIs500(t *testing.T) {
	rec := render(t, errors.New("boom"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "boom") {
		t.Fatalf("cause leaked: %s", rec.Body.String())
	}
	if rec.Header().Get("Retry-After") != "" {
		t.Fatal("unexpected Retry-After")
	}
}
