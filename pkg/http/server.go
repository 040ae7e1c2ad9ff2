package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"MarketBrief/pkg/http/middleware"
	applogger "MarketBrief/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler mounts its routes on the router.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

type ServerOption func(*ServerConfig)

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	SlowThreshold   time.Duration
	CORS            bool
}

func (c *ServerConfig) addr() string { return net.JoinHostPort(c.Host, strconv.Itoa(c.Port)) }

func WithHost(host string) ServerOption {
	return func(c *ServerConfig) { c.Host = host }
}

func WithPort(port int) ServerOption {
	return func(c *ServerConfig) { c.Port = port }
}

// WithTimeouts sets the read and write deadlines and how long Stop waits for
// in-flight requests.
func WithTimeouts(read, write, shutdown time.Duration) ServerOption {
	return func(c *ServerConfig) {
		c.ReadTimeout, c.WriteTimeout, c.ShutdownTimeout = read, write, shutdown
	}
}

// WithSlowThreshold sets the latency above which requests are logged as slow.
func WithSlowThreshold(d time.Duration) ServerOption {
	return func(c *ServerConfig) { c.SlowThreshold = d }
}

func WithCORS(enabled bool) ServerOption {
	return func(c *ServerConfig) { c.CORS = enabled }
}

// Server runs an echo router with recovery, access logging, metrics and an
// optional CORS layer, and exposes /metrics for Prometheus.
type Server struct {
	echo *echo.Echo
	cfg  ServerConfig
	l    *applogger.Logger
}

func NewServer(handler Handler, l *applogger.Logger, opts ...ServerOption) *Server {
	cfg := ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		SlowThreshold:   time.Second,
		CORS:            true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	e := echo.New()
	e.HideBanner, e.HidePort = true, true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	e.Use(middleware.RequestID(), middleware.Recover(l), middleware.RequestLogging(l), middleware.Metrics(l, cfg.SlowThreshold))
	if cfg.CORS {
		e.Use(middleware.CORS(middleware.CORSConfig{
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderXRequestID},
			MaxAge:       10 * time.Minute,
		}))
	}
	if handler != nil {
		handler.RegisterRoutes(e)
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return &Server{echo: e, cfg: cfg, l: l}
}

// Start serves in the background. Listen failures after Start returns are
// logged, not returned.
func (s *Server) Start() error {
	addr := s.cfg.addr()
	go func() {
		s.logInfo("http server listening", applogger.String("addr", addr))
		err := s.echo.Start(addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) && s.l != nil {
			s.l.Error("http server stopped unexpectedly", applogger.String("addr", addr), applogger.Error(err))
		}
	}()
	return nil
}

// Stop drains in-flight requests for at most ShutdownTimeout.
func (s *Server) Stop(ctx context.Context) error {
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}
	if err := s.echo.Shutdown(ctx); err != nil {
		return err
	}
	s.logInfo("http server stopped")
	return nil
}

// Echo exposes the router, mainly for tests.
func (s *Server) Echo() *echo.Echo { return s.echo }

func (s *Server) logInfo(msg string, fields ...applogger.Field) {
	if s.l != nil {
		s.l.Info(msg, fields...)
	}
}
