// Package server exposes a registry over HTTP using the JupyterLab code
// formatter wire protocol.
//
// Routes, relative to Config.BasePath:
//
//	GET  /formatters?cached=true   list formatters and their availability
//	POST /format                   format a batch of cells
//	GET  /version                  server version
//
// GET /metrics is served at the root when a Prometheus gatherer is set.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rickchristie/cellfmt"
	"github.com/rickchristie/cellfmt/registry"
	"go.uber.org/zap"
)

// PluginVersionHeader carries the frontend extension version.
const PluginVersionHeader = "Plugin-Version"

// Config configures the HTTP server.
type Config struct {
	// Addr is the listen address. Defaults to "127.0.0.1:8765".
	Addr string

	// BasePath prefixes every formatter route. Defaults to
	// "/jupyterlab_code_formatter".
	BasePath string

	// Version is reported by GET /version and compared against the
	// Plugin-Version header when CheckPluginVersion is set.
	Version string

	// CheckPluginVersion rejects list and format requests whose
	// Plugin-Version header differs from Version with 422.
	CheckPluginVersion bool

	// RequestTimeout bounds a single format request. Zero means no limit.
	RequestTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown. Defaults to 10s.
	ShutdownTimeout time.Duration

	// BodyLimit caps request bodies, e.g. "10M". Defaults to "10M".
	BodyLimit string

	// GroupImports turns on import grouping for every format request.
	GroupImports bool
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:8765",
		BasePath:        "/jupyterlab_code_formatter",
		Version:         cellfmt.Version,
		ShutdownTimeout: 10 * time.Second,
		BodyLimit:       "10M",
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.BasePath == "" {
		c.BasePath = def.BasePath
	}
	c.BasePath = "/" + strings.Trim(c.BasePath, "/")
	if c.Version == "" {
		c.Version = def.Version
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	if c.BodyLimit == "" {
		c.BodyLimit = def.BodyLimit
	}
	return c
}

// Server serves a formatter registry over HTTP.
type Server struct {
	cfg      Config
	reg      *registry.Registry
	gatherer prometheus.Gatherer
	logger   *zap.Logger

	once sync.Once
	echo *echo.Echo
}

// New creates a server for reg.
func New(reg *registry.Registry, cfg Config) *Server {
	return &Server{
		cfg:    cfg.withDefaults(),
		reg:    reg,
		logger: zap.NewNop(),
	}
}

// WithLogger sets the logger used for request logs.
func (s *Server) WithLogger(logger *zap.Logger) *Server {
	if logger != nil {
		s.logger = logger.Named("http")
	}
	return s
}

// WithMetrics serves g on GET /metrics.
func (s *Server) WithMetrics(g prometheus.Gatherer) *Server {
	s.gatherer = g
	return s
}

// Config returns the effective configuration.
func (s *Server) Config() Config {
	return s.cfg
}

// Handler returns the HTTP handler. Routes are built on first use.
func (s *Server) Handler() http.Handler {
	s.once.Do(s.build)
	return s.echo
}

// Run listens on Config.Addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(s.build)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening",
			zap.String("addr", s.cfg.Addr),
			zap.String("base_path", s.cfg.BasePath))
		errCh <- s.echo.Start(s.cfg.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func (s *Server) build() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			if v.Status >= http.StatusInternalServerError {
				s.logger.Error("request", fields...)
				return nil
			}
			s.logger.Debug("request", fields...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(s.cfg.BodyLimit))

	g := e.Group(s.cfg.BasePath)
	g.GET("/version", s.handleVersion)
	g.GET("/formatters", s.handleFormatters, s.checkPluginVersion)
	g.POST("/format", s.handleFormat, s.checkPluginVersion)

	if s.gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	s.echo = e
}

func (s *Server) checkPluginVersion(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.cfg.CheckPluginVersion {
			return next(c)
		}
		got := c.Request().Header.Get(PluginVersionHeader)
		if got != s.cfg.Version {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, fmt.Sprintf(
				"Mismatched versions of server extension (%s) and lab extension (%s). "+
					"Please ensure they are the same.", s.cfg.Version, got))
		}
		return next(c)
	}
}

func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"version": s.cfg.Version})
}

func (s *Server) handleFormatters(c echo.Context) error {
	cached, err := queryBool(c, "cached")
	if err != nil {
		return err
	}
	infos := s.reg.List(c.Request().Context(), cached)
	return c.JSON(http.StatusOK, cellfmt.NewFormatterList(infos))
}

func (s *Server) handleFormat(c echo.Context) error {
	var req cellfmt.BatchRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if s.cfg.GroupImports {
		req.GroupImports = true
	}

	ctx := c.Request().Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	resp, err := s.reg.FormatBatch(ctx, &req)
	if cellfmt.IsResolution(err) {
		return echo.NewHTTPError(http.StatusNotFound,
			fmt.Sprintf("Formatter %s not found!", req.Formatter)).SetInternal(err)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func queryBool(c echo.Context, name string) (bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("invalid %s value %q", name, raw))
	}
	return v, nil
}
