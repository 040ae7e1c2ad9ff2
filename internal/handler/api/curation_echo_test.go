package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"MarketBrief/internal/domain/models"
	"MarketBrief/internal/repository"
	"MarketBrief/internal/service/ratelimit"
	"MarketBrief/internal/usecase"
	xlogger "MarketBrief/pkg/logger"

	"github.com/labstack/echo/v4"
)

type noopMetrics struct{}

func (noopMetrics) RecordCuration(string, string, int) {}
func (noopMetrics) RecordCategory(string, int, int)    {}
func (noopMetrics) RecordError(string)                 {}
func (noopMetrics) RecordLatency(string, float64)      {}

type fakeQueue struct {
	mu       sync.Mutex
	msgType  string
	payloads []interface{}
	err      error
}

func (q *fakeQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.msgType = msgType
	q.payloads = append(q.payloads, payload)
	return nil
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func f(v float64) *float64 { return &v }

func newTestServer(t *testing.T) (*echo.Echo, *CurationEchoHandler, *repository.MemoryAssetStore) {
	t.Helper()
	store := repository.NewMemoryAssetStore(
		models.AssetRecord{Symbol: "BTC", Name: "Bitcoin", AssetType: models.AssetCrypto, Price: 62000,
			Change7d: f(5), Volume24h: f(3e10), IsLiquid: true, IsTrending: true, LastUpdated: time.Now()},
		models.AssetRecord{Symbol: "AAPL", Name: "Apple", AssetType: models.AssetStock, Price: 190,
			Change7d: f(-4), Volume24h: f(5e7), IsLiquid: true, LastUpdated: time.Now()},
	)
	uc := usecase.NewCurateUseCase(store, noopMetrics{}, usecase.WithMaxLimit(100))
	h := NewCurationEchoHandler(xlogger.NewNop(), uc)
	e := echo.New()
	h.RegisterRoutes(e)
	return e, h, store
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	if data != nil {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return env
}

func TestSnapshotReturnsCuratedAssets(t *testing.T) {
	e, _, _ := newTestServer(t)
	rec := do(e, http.MethodGet, "/api/snapshot?style=balanced&preference=both&limit=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var res models.SnapshotResponse
	env := decode(t, rec, &res)
	if env.Status != http.StatusOK {
		t.Fatalf("envelope status=%d", env.Status)
	}
	if res.Strategy != "balanced_mix" || res.Count != 2 {
		t.Fatalf("unexpected snapshot %+v", res)
	}
	if res.Assets[0].Symbol != "BTC" || res.Assets[0].Category != string(models.CategoryGainer) {
		t.Fatalf("first asset=%+v", res.Assets[0])
	}
	if res.Assets[1].Symbol != "AAPL" || res.Assets[1].Category != string(models.CategoryReversion) {
		t.Fatalf("second asset=%+v", res.Assets[1])
	}
	if !strings.HasPrefix(res.Text, "BTC | crypto | price=62000") {
		t.Fatalf("text=%q", res.Text)
	}
}

func TestSnapshotTextIsPlain(t *testing.T) {
	e, _, _ := newTestServer(t)
	rec := do(e, http.MethodGet, "/api/snapshot/text?style=balanced&preference=crypto", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, echo.MIMETextPlain) {
		t.Fatalf("content type=%q", ct)
	}
	if strings.Count(rec.Body.String(), "\n") != 1 || !strings.HasPrefix(rec.Body.String(), "BTC |") {
		t.Fatalf("body=%q", rec.Body.String())
	}
}

func TestSnapshotRejectsBadInput(t *testing.T) {
	e, _, store := newTestServer(t)
	cases := map[string]string{
		"missing style":   "/api/snapshot?preference=crypto",
		"unknown style":   "/api/snapshot?style=scalping",
		"unknown pref":    "/api/snapshot?style=balanced&preference=forex",
		"limit too large": "/api/snapshot?style=balanced&limit=101",
		"bad as_of":       "/api/snapshot?style=balanced&as_of=yesterday",
	}
	for name, target := range cases {
		rec := do(e, http.MethodGet, target, "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d body=%s", name, rec.Code, rec.Body.String())
		}
	}
	if store.Calls() != 0 {
		t.Fatalf("invalid requests must not read the store, calls=%d", store.Calls())
	}
}

func TestSnapshotUnknownStyleCode(t *testing.T) {
	e, _, _ := newTestServer(t)
	rec := do(e, http.MethodGet, "/api/snapshot?style=scalping", "")
	if !strings.Contains(rec.Body.String(), "ERR_INVALID_ARGUMENT") {
		t.Fatalf("body=%s", rec.Body.String())
	}
}

func TestSnapshotSourceUnavailable(t *testing.T) {
	e, _, store := newTestServer(t)
	store.SetFailure(errors.New("connection refused"))
	rec := do(e, http.MethodGet, "/api/snapshot?style=aggressive", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ERR_SOURCE_UNAVAILABLE") {
		t.Fatalf("body=%s", rec.Body.String())
	}
}

func TestSnapshotRateLimited(t *testing.T) {
	e, h, _ := newTestServer(t)
	h.SetLimiter(ratelimit.New(1, 0.001))
	if rec := do(e, http.MethodGet, "/api/snapshot?style=balanced", ""); rec.Code != http.StatusOK {
		t.Fatalf("first status=%d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/api/snapshot?style=balanced", ""); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second status=%d", rec.Code)
	}
}

func TestStrategiesListsEveryPair(t *testing.T) {
	e, _, _ := newTestServer(t)
	rec := do(e, http.MethodGet, "/api/strategies?limit=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var res []models.StrategyDTO
	decode(t, rec, &res)
	if len(res) != 9 {
		t.Fatalf("strategies=%d", len(res))
	}
	for _, s := range res {
		total := 0
		for _, q := range s.Quotas {
			total += q.Limit
		}
		if total != 10 {
			t.Fatalf("%s/%s quota total=%d", s.Style, s.Preference, total)
		}
	}
}

func TestEnqueueSnapshotJob(t *testing.T) {
	e, h, _ := newTestServer(t)
	if rec := do(e, http.MethodPost, "/api/snapshot/jobs", `{"style":"balanced"}`); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("without queue status=%d", rec.Code)
	}

	q := &fakeQueue{}
	h.SetQueue(q)
	rec := do(e, http.MethodPost, "/api/snapshot/jobs", `{"style":"conservative","preference":"stocks","limit":12}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if q.msgType != usecase.SnapshotJobType || len(q.payloads) != 1 {
		t.Fatalf("queue got type=%q payloads=%d", q.msgType, len(q.payloads))
	}
	p := q.payloads[0].(usecase.SnapshotJobPayload)
	if p.Style != "conservative" || p.Preference != "stocks" || p.Limit != 12 || p.JobID == "" {
		t.Fatalf("payload=%+v", p)
	}
	var res models.SnapshotJobResponse
	decode(t, rec, &res)
	if res.JobID != p.JobID {
		t.Fatalf("response job id %q, queued %q", res.JobID, p.JobID)
	}

	if rec := do(e, http.MethodPost, "/api/snapshot/jobs", `{"style":"scalping"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid style status=%d", rec.Code)
	}
	if len(q.payloads) != 1 {
		t.Fatalf("invalid job must not be enqueued")
	}

	q.err = errors.New("redis down")
	if rec := do(e, http.MethodPost, "/api/snapshot/jobs", `{"style":"balanced"}`); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("queue failure status=%d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	e, _, store := newTestServer(t)
	if rec := do(e, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	store.SetFailure(errors.New("down"))
	if rec := do(e, http.MethodGet, "/healthz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rec.Code)
	}
}
