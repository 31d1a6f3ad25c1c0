// Package server exposes the bot over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dyike/StockBot/internal/service"
	"github.com/dyike/StockBot/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// Server routes HTTP requests to the current Bot. The Bot can be replaced
// while requests are in flight; each request uses the Bot it loaded first.
type Server struct {
	addr    string
	bot     atomic.Pointer[service.Bot]
	store   *storage.Store
	metrics *Metrics
	logger  *zap.Logger
	engine  *gin.Engine
}

type Option func(*Server)

func WithStore(store *storage.Store) Option {
	return func(s *Server) {
		s.store = store
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds a server listening on addr. Without a store the history routes
// answer 503.
func New(addr string, bot *service.Bot, opts ...Option) *Server {
	s := &Server{
		addr:   addr,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	s.bot.Store(bot)
	s.engine = s.routes()
	return s
}

// SetBot swaps the Bot used by new requests.
func (s *Server) SetBot(bot *service.Bot) {
	s.bot.Store(bot)
	s.logger.Info("bot replaced")
}

func (s *Server) Bot() *service.Bot {
	return s.bot.Load()
}

func (s *Server) Metrics() *Metrics {
	return s.metrics
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(recovery(s.logger), requestLogger(s.logger, s.metrics))

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	{
		api.POST("/messages", s.handleMessage)
		api.GET("/keywords", s.handleKeywords)

		history := api.Group("/conversations", s.requireStore)
		history.GET("", s.handleListConversations)
		history.GET("/:id/messages", s.handleListMessages)
		history.DELETE("/:id", s.handleDeleteConversation)
	}

	r.NoRoute(func(c *gin.Context) {
		abort(c, http.StatusNotFound, "not found")
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
