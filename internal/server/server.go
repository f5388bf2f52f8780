package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"Vid2News/internal/usecase"
)

// Options configures the ops server.
type Options struct {
	Address   string
	JWTSecret []byte
	Desks     []*usecase.Desk
	Gatherer  prometheus.Gatherer
	Logger    *slog.Logger
	ErrorLog  *log.Logger
}

// Server exposes health, metrics, desk inspection and manual job triggers.
type Server struct {
	echo    *echo.Echo
	address string
	desks   map[string]*usecase.Desk
	order   []string
	logger  *slog.Logger

	background context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// New builds the router. Job triggers are mounted only when a JWT secret is set.
func New(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	if opts.ErrorLog != nil {
		e.Server.ErrorLog = opts.ErrorLog
	}

	bg, cancel := context.WithCancel(context.Background())
	s := &Server{
		echo:       e,
		address:    opts.Address,
		desks:      map[string]*usecase.Desk{},
		logger:     opts.Logger,
		background: bg,
		cancel:     cancel,
	}
	for _, d := range opts.Desks {
		if d == nil {
			continue
		}
		if _, dup := s.desks[d.Name]; !dup {
			s.order = append(s.order, d.Name)
		}
		s.desks[d.Name] = d
	}

	e.HTTPErrorHandler = s.handleError

	metrics := promhttp.Handler()
	if opts.Gatherer != nil {
		metrics = promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})
	}
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(metrics))

	api := e.Group("/api")
	api.GET("/desks", s.listDesks)
	api.GET("/desks/:desk/posts", s.listPosts)

	if len(opts.JWTSecret) > 0 {
		jobs := api.Group("/desks/:desk", requireToken(opts.JWTSecret))
		jobs.POST("/generate", s.generate)
		jobs.POST("/analyze", s.analyze)
		jobs.POST("/publish", s.publish)
	}

	return s
}

// Handler returns the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.info("ops server listening", "address", s.address)
	if err := s.echo.Start(s.address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", s.address, err)
	}
	return nil
}

// Shutdown stops accepting requests and cancels background generation runs.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.echo.Shutdown(ctx)
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}
	return err
}

func (s *Server) handleError(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
	}
	req := c.Request()
	if s.logger != nil {
		level := slog.LevelWarn
		if code >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.Log(req.Context(), level, "request failed", "status", code, "method", req.Method, "path", req.URL.Path, "error", err)
	}
	if !c.Response().Committed {
		_ = c.JSON(code, map[string]string{"error": msg})
	}
}

func (s *Server) desk(c echo.Context) (*usecase.Desk, error) {
	name := c.Param("desk")
	d, ok := s.desks[name]
	if !ok {
		return nil, echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown desk %q", name))
	}
	return d, nil
}

func (s *Server) info(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}
