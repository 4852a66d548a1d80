package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/steadyboard/internal/ir"
)

// shutdownTimeout bounds graceful shutdown of the HTTP server.
const shutdownTimeout = 5 * time.Second

// Server publishes the latest board over HTTP.
//
// Routes:
//
//	GET /board      board JSON
//	GET /board.txt  plain-text table
//	GET /healthz    liveness plus the last rendered seq
//	GET /metrics    when a metrics handler is configured
type Server struct {
	mu           sync.RWMutex
	board        Board
	rendered     bool
	defaultLabel string

	router *gin.Engine
	logger *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	metrics http.Handler
	logger  *slog.Logger
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(o *serverOptions) {
		o.metrics = h
	}
}

// WithServerLogger sets the logger used for server lifecycle messages.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(o *serverOptions) {
		o.logger = l
	}
}

// NewServer creates a Server with its routes registered.
func NewServer(defaultLabel string, opts ...ServerOption) *Server {
	o := serverOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		defaultLabel: defaultLabel,
		board:        NewBoard(ir.CommittedState{}, defaultLabel),
		router:       gin.New(),
		logger:       o.logger,
	}
	s.router.Use(gin.Recovery())
	s.router.GET("/board", s.handleBoard)
	s.router.GET("/board.txt", s.handleBoardText)
	s.router.GET("/healthz", s.handleHealth)
	if o.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(o.metrics))
	}
	return s
}

// Name implements engine.Sink.
func (s *Server) Name() string { return "http" }

// Render implements engine.Sink.
func (s *Server) Render(_ context.Context, state ir.CommittedState) error {
	b := NewBoard(state, s.defaultLabel)

	s.mu.Lock()
	s.board = b
	s.rendered = true
	s.mu.Unlock()
	return nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on addr until ctx is cancelled, then shuts down
// gracefully. It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("board server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("board server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("board server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("board server: %w", err)
	}
	return nil
}

func (s *Server) snapshot() (Board, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board, s.rendered
}

func (s *Server) handleBoard(c *gin.Context) {
	b, _ := s.snapshot()
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, b)
}

func (s *Server) handleBoardText(c *gin.Context) {
	b, _ := s.snapshot()
	var sb strings.Builder
	if err := WriteText(&sb, b); err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Header("Cache-Control", "no-store")
	c.String(http.StatusOK, sb.String())
}

func (s *Server) handleHealth(c *gin.Context) {
	b, rendered := s.snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"rendered": rendered,
		"seq":      b.Seq,
	})
}
