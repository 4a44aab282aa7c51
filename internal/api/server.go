// Package api exposes the lexiroute HTTP surface: the translate entry point,
// per-endpoint telemetry, recent logs, usage summaries, Prometheus metrics,
// and a websocket telemetry stream for the dashboard.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lexiroute/lexiroute/internal/api/middleware"
	"github.com/lexiroute/lexiroute/internal/config"
	"github.com/lexiroute/lexiroute/internal/dispatch"
	"github.com/lexiroute/lexiroute/internal/logging"
	"github.com/lexiroute/lexiroute/internal/pool"
	"github.com/lexiroute/lexiroute/internal/usage"
	log "github.com/sirupsen/logrus"
)

// Runtime bundles the objects built from one configuration snapshot. A
// configuration reload produces a fresh Runtime that is swapped in atomically;
// dispatches already in flight finish against the runtime they started with.
type Runtime struct {
	Cfg        *config.Config
	Pool       *pool.Pool
	Dispatcher *dispatch.Dispatcher
}

// BuildRuntime constructs the pool and dispatcher for a configuration
// snapshot. recorder may be nil.
func BuildRuntime(cfg *config.Config, invoker dispatch.Invoker, recorder dispatch.Recorder) *Runtime {
	p := pool.New()
	d := dispatch.New(cfg, p, invoker)
	d.SetRecorder(recorder)
	return &Runtime{Cfg: cfg, Pool: p, Dispatcher: d}
}

// Server is the lexiroute HTTP server.
type Server struct {
	runtime atomic.Pointer[Runtime]
	usage   *usage.Store
	httpSrv *http.Server
}

// NewServer creates a server around an initial runtime. store may be nil when
// request logging is disabled.
func NewServer(rt *Runtime, store *usage.Store) *Server {
	s := &Server{usage: store}
	s.runtime.Store(rt)
	return s
}

// Runtime returns the current runtime bundle.
func (s *Server) Runtime() *Runtime { return s.runtime.Load() }

// SwapRuntime installs a new runtime, returning the previous one.
func (s *Server) SwapRuntime(rt *Runtime) *Runtime { return s.runtime.Swap(rt) }

// Handler builds the Gin engine with all routes and middleware installed.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(logging.GinLogrusRecovery())
	engine.Use(logging.GinLogrusLogger())
	engine.Use(middleware.PrometheusMiddleware())

	engine.GET("/metrics", middleware.PrometheusHandler())

	v1 := engine.Group("/v1")
	v1.POST("/translate", s.handleTranslate)
	v1.GET("/endpoints", s.handleEndpoints)
	v1.POST("/endpoints/:id/reset", s.handleResetEndpoint)
	v1.GET("/logs", s.handleLogs)
	v1.GET("/usage", s.handleUsage)
	v1.GET("/telemetry/ws", s.handleTelemetryWS)

	return engine
}

// Run starts the HTTP server on the configured port and blocks until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	rt := s.Runtime()
	addr := fmt.Sprintf(":%d", rt.Cfg.Port)
	s.httpSrv = &http.Server{Addr: addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("lexiroute listening on %s", addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}
