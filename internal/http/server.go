// Package http serves the worker API, the Twilio webhook and the worker
// event streams.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jthomaschappell/echolingo-resurgence/internal/logging"
	"github.com/jthomaschappell/echolingo-resurgence/internal/messaging"
	"github.com/jthomaschappell/echolingo-resurgence/internal/notify"
	"github.com/jthomaschappell/echolingo-resurgence/internal/relay"
	"github.com/jthomaschappell/echolingo-resurgence/internal/store"
	"github.com/jthomaschappell/echolingo-resurgence/internal/supply"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// BodyLimit caps request bodies on the message and webhook routes.
const BodyLimit = "1M"

// List limits for GET /api/v1/supply-requests.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Relay is the message flow the server exposes.
type Relay interface {
	HandleWorkerMessage(ctx context.Context, in relay.WorkerMessage) (*relay.WorkerResult, error)
	HandleSupervisorReply(ctx context.Context, in relay.SupervisorMessage) (relay.SupervisorResult, error)
}

// EventStream streams a worker channel to the client.
type EventStream interface {
	Stream(c echo.Context, channelKey string) error
}

// Server provides HTTP endpoints for echolingo.
type Server struct {
	echo      *echo.Echo
	relay     Relay
	requests  store.SupplyRequests
	events    EventStream
	validator messaging.Validator
	limiter   *ipLimiter
	logger    *logging.Logger
	config    *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// PublicURL is the webhook URL as Twilio calls it. Signatures are
	// computed over it.
	PublicURL string
	// Per-IP webhook rate, requests per second, and burst.
	WebhookRateLimit float64
	WebhookBurst     int
}

// Deps are the collaborators of a Server. Validator nil disables webhook
// signature checks; Events nil answers event streams with 503.
type Deps struct {
	Relay     Relay
	Requests  store.SupplyRequests
	Events    EventStream
	Validator messaging.Validator
	Metrics   *HTTPMetrics
}

// NewServer creates a new HTTP server.
func NewServer(d Deps, logger *logging.Logger, cfg *Config) (*Server, error) {
	if d.Relay == nil {
		return nil, fmt.Errorf("relay cannot be nil")
	}
	if d.Requests == nil {
		return nil, fmt.Errorf("supply request store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 3001}
	}
	if cfg.WebhookRateLimit <= 0 {
		cfg.WebhookRateLimit = 5
	}
	if cfg.WebhookBurst <= 0 {
		cfg.WebhookBurst = 20
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))
	if d.Metrics != nil {
		e.Use(d.Metrics.MetricsMiddleware())
	}

	s := &Server{
		echo:      e,
		relay:     d.Relay,
		requests:  d.Requests,
		events:    d.Events,
		validator: d.Validator,
		limiter:   newIPLimiter(cfg.WebhookRateLimit, cfg.WebhookBurst),
		logger:    logger,
		config:    cfg,
	}
	s.registerRoutes()
	return s, nil
}

// requestLogger tags the request context with its id and logs each
// request once it completes.
func requestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			id := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := logging.WithRequestID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info(ctx, "http request",
				zap.String("method", c.Request().Method),
				zap.String("route", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return nil
		}
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.echo.POST("/webhook/twilio", s.handleTwilioWebhook,
		s.limiter.middleware(s.logger),
		middleware.BodyLimit(BodyLimit),
	)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/messages", s.handleWorkerMessage, middleware.BodyLimit(BodyLimit))
	v1.GET("/supply-requests", s.handleListSupplyRequests)
	v1.GET("/workers/:worker_id/events", s.handleWorkerEvents)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleWorkerMessage(c echo.Context) error {
	var req relay.WorkerMessage
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	res, err := s.relay.HandleWorkerMessage(c.Request().Context(), req)
	if err != nil {
		return s.relayError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// relayError maps relay failures onto HTTP statuses.
func (s *Server) relayError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, supply.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, relay.ErrMessageNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "message not found")
	case errors.Is(err, supply.ErrTranslation):
		return echo.NewHTTPError(http.StatusBadGateway, "translation failed").SetInternal(err)
	default:
		s.logger.Error(c.Request().Context(), "request failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}

func (s *Server) handleListSupplyRequests(c echo.Context) error {
	filter := store.RequestFilter{
		WorkerID: c.QueryParam("worker_id"),
		Limit:    DefaultListLimit,
	}
	if v := c.QueryParam("status"); v != "" {
		status := supply.Status(v)
		if !status.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown status "+strconv.Quote(v))
		}
		filter.Status = status
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		filter.Limit = min(n, MaxListLimit)
	}

	list, err := s.requests.ListSupplyRequests(c.Request().Context(), filter)
	if err != nil {
		s.logger.Error(c.Request().Context(), "listing supply requests failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
	if list == nil {
		list = []supply.SupplyRequest{}
	}
	return c.JSON(http.StatusOK, SupplyRequestList{SupplyRequests: list, Count: len(list)})
}

func (s *Server) handleWorkerEvents(c echo.Context) error {
	if s.events == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "event stream unavailable")
	}
	workerID := c.Param("worker_id")
	ctx := logging.WithWorkerID(c.Request().Context(), workerID)
	s.logger.Debug(ctx, "worker event stream opened")
	err := s.events.Stream(c, notify.ChannelKey(workerID))
	s.logger.Debug(ctx, "worker event stream closed")
	return err
}

// Handler exposes the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
