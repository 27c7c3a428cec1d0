// Package server implements the daemon's HTTP API: read endpoints that
// project views out of the snapshot store, and action endpoints that
// submit commands to the controller and nudge the poller. Reads never
// touch the network.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dockwatch-io/dockwatch/internal/daemon/analytics"
	"github.com/dockwatch-io/dockwatch/internal/daemon/poller"
	"github.com/dockwatch-io/dockwatch/internal/engine"
	"github.com/dockwatch-io/dockwatch/internal/models"
	"github.com/dockwatch-io/dockwatch/internal/updater"
)

// Submitter is the slice of the controller client the action endpoints
// need.
type Submitter interface {
	SubmitCommand(ctx context.Context, nodeID, commandType, payload string) (models.CommandRecord, error)
}

// Options configures a Server.
type Options struct {
	// Port to listen on; 0 allocates dynamically.
	Port      int
	Poller    *poller.Poller
	Client    Submitter
	Updater   *updater.Manager
	Analytics *analytics.Client
	Registry  *prometheus.Registry
	Logger    *slog.Logger
}

// Server is the daemon's HTTP server.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	port       int

	poller    *poller.Poller
	client    Submitter
	updater   *updater.Manager
	analytics *analytics.Client
	log       *slog.Logger

	mu         sync.Mutex
	projectors map[string]*engine.Projector
}

// New creates a server listening on the specified port.
// Pass port 0 for dynamic allocation.
func New(opts Options) (*Server, error) {
	listener, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", fmt.Sprintf(":%d", opts.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	actualPort := listener.Addr().(*net.TCPAddr).Port

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	srv := &Server{
		listener:   listener,
		port:       actualPort,
		poller:     opts.Poller,
		client:     opts.Client,
		updater:    opts.Updater,
		analytics:  opts.Analytics,
		log:        log.With("component", "server"),
		projectors: make(map[string]*engine.Projector),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestLogger(srv.log), gin.Recovery())
	srv.routes(router, opts.Registry)

	srv.httpServer = &http.Server{Handler: router}
	return srv, nil
}

// Port returns the port the server is listening on.
func (s *Server) Port() int {
	return s.port
}

// Serve starts serving requests. This blocks until Stop is called.
func (s *Server) Serve() error {
	err := s.httpServer.Serve(s.listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully stops the server.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Warn("shutdown incomplete", "error", err)
	}
}

func (s *Server) routes(router *gin.Engine, registry *prometheus.Registry) {
	router.GET("/healthz", s.handleHealth)
	router.GET("/version", s.handleVersion)
	if registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	api.GET("/nodes", s.handleNodes)

	node := api.Group("/nodes/:node")
	node.GET("/containers", s.handleContainers)
	node.GET("/stacks", s.handleStacks)
	node.GET("/stats", s.handleStats)
	node.GET("/attempts", s.handleAttempts)
	node.GET("/commands/:id", s.handleCommand)
	node.GET("/containers/:id/stats", s.handleContainerStats)
	node.GET("/containers/:id/logs", s.handleContainerLogs)
	node.GET("/containers/:id/exec", s.handleExecResult)

	node.POST("/refresh", s.handleRefresh)
	node.POST("/exec", s.handleExec)
	for _, action := range []string{"start", "stop", "restart", "remove"} {
		node.POST("/containers/:id/"+action, s.handleContainerAction("docker."+action))
	}
	for _, action := range []string{"up", "down"} {
		node.POST("/stacks/:name/"+action, s.handleStackAction("compose."+action))
	}
}

// projector returns the per-node projector, creating it on first use.
// One projector per node keeps the snapshot memo effective.
func (s *Server) projector(nodeID string) *engine.Projector {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projectors[nodeID]
	if !ok {
		p = engine.NewProjector(nil)
		s.projectors[nodeID] = p
	}
	return p
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
