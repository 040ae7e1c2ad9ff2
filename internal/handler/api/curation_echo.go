package api

import (
	"errors"
	"time"

	models "MarketBrief/internal/domain/models"
	"MarketBrief/internal/service/metrics"
	"MarketBrief/internal/service/ratelimit"
	"MarketBrief/internal/usecase"
	xhttp "MarketBrief/pkg/http"
	xlogger "MarketBrief/pkg/logger"
	"MarketBrief/pkg/queue"
	xutil "MarketBrief/pkg/util"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// CurationEchoHandler serves market snapshots over HTTP.
type CurationEchoHandler struct {
	logger *xlogger.Logger
	curate *usecase.CurateUseCase
	queue  queue.QueueService
	rl     *ratelimit.Limiter
}

func NewCurationEchoHandler(logger *xlogger.Logger, curate *usecase.CurateUseCase) *CurationEchoHandler {
	metrics.Register()
	return &CurationEchoHandler{logger: logger, curate: curate}
}

// SetQueue enables asynchronous snapshot jobs.
func (h *CurationEchoHandler) SetQueue(q queue.QueueService) { h.queue = q }

// SetLimiter enables per-client rate limiting.
func (h *CurationEchoHandler) SetLimiter(rl *ratelimit.Limiter) { h.rl = rl }

func (h *CurationEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/snapshot", h.Snapshot)
	g.GET("/snapshot/text", h.SnapshotText)
	g.GET("/strategies", h.Strategies)
	g.POST("/snapshot/jobs", h.EnqueueSnapshot)
	e.GET("/healthz", h.Health)
}

func (h *CurationEchoHandler) Snapshot(c echo.Context) error {
	snap, err := h.snapshot(c, "snapshot")
	if err != nil {
		return err
	}
	if snap == nil {
		return nil
	}
	return xhttp.SuccessResponse(c, models.NewSnapshotResponse(snap))
}

// SnapshotText returns only the LLM-ready text block.
func (h *CurationEchoHandler) SnapshotText(c echo.Context) error {
	snap, err := h.snapshot(c, "snapshot_text")
	if err != nil {
		return err
	}
	if snap == nil {
		return nil
	}
	return xhttp.TextResponse(c, snap.Text)
}

// snapshot writes the error response itself and returns a nil snapshot when
// the request could not be served.
func (h *CurationEchoHandler) snapshot(c echo.Context, endpoint string) (*models.Snapshot, error) {
	start := time.Now()
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	if !h.allow(c, endpoint) {
		return nil, xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited").WithRetryAfter(time.Second))
	}
	req := &models.SnapshotRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues(endpoint, "validation").Inc()
		return nil, xhttp.BadRequestResponse(c, verr)
	}
	params := usecase.CurateParams{Style: req.Style, Preference: req.Preference, Limit: req.Limit}
	if req.AsOf != "" {
		t, ok := xutil.ParseTime(req.AsOf)
		if !ok {
			metrics.APIErrors.WithLabelValues(endpoint, "validation").Inc()
			return nil, xhttp.AppErrorResponse(c, xhttp.InvalidArgumentError("as_of must be RFC3339 or unix seconds").WithParam("as_of", req.AsOf))
		}
		params.AsOf = t
	}

	snap, err := h.curate.Curate(c.Request().Context(), params)
	if err != nil {
		return nil, h.errorResponse(c, endpoint, err)
	}
	return snap, nil
}

func (h *CurationEchoHandler) Strategies(c echo.Context) error {
	req := &models.StrategiesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.curate.Strategies(req.Limit)
	if err != nil {
		return h.errorResponse(c, "strategies", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=300")
	return xhttp.SuccessResponse(c, res)
}

// EnqueueSnapshot validates the request and hands it to the job queue.
func (h *CurationEchoHandler) EnqueueSnapshot(c echo.Context) error {
	const endpoint = "snapshot_jobs"
	if h.queue == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("ERR_QUEUE_DISABLED", "job queue is not configured"))
	}
	if !h.allow(c, endpoint) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited").WithRetryAfter(time.Second))
	}
	req := &models.SnapshotJobRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues(endpoint, "validation").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}
	params := usecase.CurateParams{Style: req.Style, Preference: req.Preference, Limit: req.Limit}
	if err := h.curate.Validate(params); err != nil {
		return h.errorResponse(c, endpoint, err)
	}

	payload := usecase.SnapshotJobPayload{JobID: uuid.NewString(), Style: req.Style, Preference: req.Preference, Limit: req.Limit}
	if err := h.queue.PublishMessage(c.Request().Context(), usecase.SnapshotJobType, payload); err != nil {
		metrics.APIErrors.WithLabelValues(endpoint, "queue").Inc()
		h.logger.Error("enqueue snapshot job failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("ERR_QUEUE_UNAVAILABLE", "could not enqueue snapshot job"))
	}
	return xhttp.AcceptedResponse(c, models.SnapshotJobResponse{
		JobID:      payload.JobID,
		JobType:    usecase.SnapshotJobType,
		Style:      req.Style,
		Preference: req.Preference,
		Limit:      req.Limit,
	})
}

func (h *CurationEchoHandler) Health(c echo.Context) error {
	if err := h.curate.Health(c.Request().Context()); err != nil {
		h.logger.Warn("health check failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("ERR_SOURCE_UNAVAILABLE", "asset store unreachable"))
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *CurationEchoHandler) allow(c echo.Context, endpoint string) bool {
	if h.rl == nil || h.rl.Allow(c.RealIP()+":"+endpoint) {
		return true
	}
	metrics.APIRateLimited.WithLabelValues(endpoint).Inc()
	h.logger.Warn("rate limited", xlogger.String("endpoint", endpoint), xlogger.String("remote", c.RealIP()))
	return false
}

func (h *CurationEchoHandler) errorResponse(c echo.Context, endpoint string, err error) error {
	switch {
	case errors.Is(err, models.ErrInvalidArgument):
		metrics.APIErrors.WithLabelValues(endpoint, "invalid_argument").Inc()
		return xhttp.AppErrorResponse(c, xhttp.InvalidArgumentError(err.Error()).WithError(err))
	case errors.Is(err, models.ErrSourceUnavailable):
		metrics.APIErrors.WithLabelValues(endpoint, "source_unavailable").Inc()
		h.logger.Error("asset source unavailable", xlogger.String("endpoint", endpoint), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("ERR_SOURCE_UNAVAILABLE", "asset source unavailable").WithError(err))
	default:
		metrics.APIErrors.WithLabelValues(endpoint, "internal").Inc()
		h.logger.Error("curation error", xlogger.String("endpoint", endpoint), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
}
